//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/gymfinance/internal/domain"
)

func TestRepositoryReadsTenantLedger(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	seed(t, ctx, pool, "gym-a",
		`INSERT INTO staff (tenant_id, staff_id, name, base_salary, commission_type, commission_value, leave_dates)
         VALUES ('gym-a', 'S1', 'Asha', 3000, 'percentage', 10, ARRAY['2025-03-04'::date, '2025-03-05'::date])`,
		`INSERT INTO pt_plans (tenant_id, plan_id, name, price, sessions, staff_id) VALUES ('gym-a', 'pt-1', 'PT x8', 1500, 8, 'S1')`,
		`INSERT INTO membership_plans (tenant_id, plan_id, name, price) VALUES ('gym-a', 'gold', 'Gold', 2000)`,
		`INSERT INTO payments (tenant_id, payment_id, member_id, plan_category, plan_id, amount, discount, paid_at) VALUES
         ('gym-a', 'p1', 'm1', 'gym', 'gold', 2000, 150.50, '2025-03-03T10:00:00Z'),
         ('gym-a', 'p2', 'm2', 'pt', 'pt-1', 1500, NULL, '2025-03-12T10:00:00Z'),
         ('gym-a', 'p3', 'm3', '', NULL, 99.99, NULL, '2025-04-01T00:00:00Z')`,
		`INSERT INTO staff_payments (tenant_id, payment_id, staff_id, base_salary, commission, total, paid_at, period_month, period_year)
         VALUES ('gym-a', 'sp1', 'S1', 3000, 150, 3150, '2025-03-28T12:00:00Z', 3, 2025)`,
		`INSERT INTO transactions (tenant_id, transaction_id, type, category, amount, occurred_at)
         VALUES ('gym-a', 't1', 'expense', 'marketing', 1000, '2025-03-10T09:00:00Z')`,
		`INSERT INTO members (tenant_id, member_id, joined_at) VALUES ('gym-a', 'm1', '2025-03-01T08:00:00Z'), ('gym-a', 'm2', '2025-04-01T00:00:00Z')`,
	)
	seed(t, ctx, pool, "gym-b",
		`INSERT INTO payments (tenant_id, payment_id, member_id, plan_category, amount, paid_at) VALUES ('gym-b', 'x1', 'mx', 'gym', 5, '2025-03-03T10:00:00Z')`,
	)

	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	payments, err := repo.PaymentsBetween(ctx, "gym-a", start, end)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, "p1", payments[0].ID)
	require.Equal(t, "2000", payments[0].Amount.String())
	require.NotNil(t, payments[0].Discount)
	require.Equal(t, "150.5", payments[0].Discount.String())
	require.Nil(t, payments[1].Discount)

	comp, err := repo.CompensationBetween(ctx, "gym-a", start, end)
	require.NoError(t, err)
	require.Len(t, comp, 1)
	require.Equal(t, time.March, comp[0].Month)
	require.Equal(t, "3150", comp[0].Total.String())

	txs, err := repo.TransactionsBetween(ctx, "gym-a", start, end)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, domain.TransactionExpense, txs[0].Type)

	members, err := repo.MembersJoinedBetween(ctx, "gym-a", start, end)
	require.NoError(t, err)
	require.Len(t, members, 2)

	staff, err := repo.GetStaff(ctx, "gym-a", "S1")
	require.NoError(t, err)
	require.Equal(t, domain.CommissionPercentage, staff.CommissionType)
	require.Len(t, staff.LeaveDates, 2)

	_, err = repo.GetStaff(ctx, "gym-a", "S9")
	require.ErrorIs(t, err, domain.ErrStaffNotFound)

	plans, err := repo.PlansByID(ctx, "gym-a", domain.PlanTablePT, []string{"pt-1", "pt-deleted"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, "S1", plans["pt-1"].StaffID)

	plans, err = repo.PlansByID(ctx, "gym-a", domain.PlanTableMembership, []string{"gold"})
	require.NoError(t, err)
	require.Equal(t, "2000", plans["gold"].Price.String())

	other, err := repo.PaymentsBetween(ctx, "gym-b", start, end)
	require.NoError(t, err)
	require.Len(t, other, 1, "reads are scoped to the requesting tenant")
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("gymfinance"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runMigrations(t, ctx, pool)
	return pool
}

func seed(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantID string, stmts ...string) {
	t.Helper()
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err = tx.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))
}

func runMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	files, err := filepath.Glob(resolvePath(t, "../../../db/postgres/migrations/*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
