// Package postgres reads ledger records from Postgres. Every query runs inside a
// transaction scoped to the tenant through app.tenant_id so row-level security applies.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

// Repository implements the ledger, plan, staff and member read ports.
type Repository struct {
	pool *pgxpool.Pool
}

var (
	_ domain.LedgerStore     = (*Repository)(nil)
	_ domain.PlanStore       = (*Repository)(nil)
	_ domain.StaffDirectory  = (*Repository)(nil)
	_ domain.MemberDirectory = (*Repository)(nil)
)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) withTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PaymentsBetween implements domain.LedgerStore.
func (r *Repository) PaymentsBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.PaymentRecord, error) {
	const query = `SELECT payment_id, member_id, plan_category, COALESCE(plan_id, ''), amount::text, discount::text, paid_at
        FROM payments WHERE tenant_id=$1 AND paid_at >= $2 AND paid_at < $3
        ORDER BY paid_at, payment_id`

	var out []domain.PaymentRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p        domain.PaymentRecord
				amount   string
				discount *string
			)
			if err := rows.Scan(&p.ID, &p.MemberID, &p.PlanCategory, &p.PlanID, &amount, &discount, &p.PaidAt); err != nil {
				return err
			}
			if p.Amount, err = decimal.NewFromString(amount); err != nil {
				return eris.Wrapf(err, "payment %s amount", p.ID)
			}
			if discount != nil {
				d, err := decimal.NewFromString(*discount)
				if err != nil {
					return eris.Wrapf(err, "payment %s discount", p.ID)
				}
				p.Discount = &d
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, eris.Wrap(err, "query payments")
	}
	return out, nil
}

// CompensationBetween implements domain.LedgerStore.
func (r *Repository) CompensationBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.CompensationRecord, error) {
	const query = `SELECT payment_id, staff_id, base_salary::text, commission::text, total::text, paid_at, period_month, period_year
        FROM staff_payments WHERE tenant_id=$1 AND paid_at >= $2 AND paid_at < $3
        ORDER BY paid_at, payment_id`

	var out []domain.CompensationRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				c                       domain.CompensationRecord
				base, commission, total string
				month                   int
			)
			if err := rows.Scan(&c.ID, &c.StaffID, &base, &commission, &total, &c.PaidAt, &month, &c.Year); err != nil {
				return err
			}
			c.Month = time.Month(month)
			if c.BaseSalary, c.Commission, c.Total, err = parseDecimals3(base, commission, total); err != nil {
				return eris.Wrapf(err, "staff payment %s", c.ID)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, eris.Wrap(err, "query staff payments")
	}
	return out, nil
}

// TransactionsBetween implements domain.LedgerStore.
func (r *Repository) TransactionsBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.LedgerTransaction, error) {
	const query = `SELECT transaction_id, type, category, amount::text, occurred_at
        FROM transactions WHERE tenant_id=$1 AND occurred_at >= $2 AND occurred_at < $3
        ORDER BY occurred_at, transaction_id`

	var out []domain.LedgerTransaction
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t      domain.LedgerTransaction
				amount string
			)
			if err := rows.Scan(&t.ID, &t.Type, &t.Category, &amount, &t.Date); err != nil {
				return err
			}
			if t.Amount, err = decimal.NewFromString(amount); err != nil {
				return eris.Wrapf(err, "transaction %s amount", t.ID)
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, eris.Wrap(err, "query transactions")
	}
	return out, nil
}

// MembersJoinedBetween implements domain.MemberDirectory.
func (r *Repository) MembersJoinedBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.MemberRecord, error) {
	const query = `SELECT member_id, joined_at FROM members
        WHERE tenant_id=$1 AND joined_at >= $2 AND joined_at <= $3
        ORDER BY joined_at, member_id`

	var out []domain.MemberRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m domain.MemberRecord
			if err := rows.Scan(&m.ID, &m.JoinedAt); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, eris.Wrap(err, "query members")
	}
	return out, nil
}

const staffColumns = `staff_id, name, base_salary::text, commission_type, commission_value::text, leave_dates`

func scanStaff(row pgx.Row) (domain.StaffRecord, error) {
	var (
		s                domain.StaffRecord
		base, commission string
		leaves           []time.Time
	)
	if err := row.Scan(&s.ID, &s.Name, &base, &s.CommissionType, &commission, &leaves); err != nil {
		return s, err
	}
	var err error
	if s.BaseSalary, err = decimal.NewFromString(base); err != nil {
		return s, eris.Wrapf(err, "staff %s base salary", s.ID)
	}
	if s.CommissionValue, err = decimal.NewFromString(commission); err != nil {
		return s, eris.Wrapf(err, "staff %s commission value", s.ID)
	}
	s.LeaveDates = leaves
	return s, nil
}

// ListStaff implements domain.StaffDirectory.
func (r *Repository) ListStaff(ctx context.Context, tenantID string) ([]domain.StaffRecord, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id=$1 ORDER BY staff_id`

	var out []domain.StaffRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanStaff(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, eris.Wrap(err, "query staff")
	}
	return out, nil
}

// GetStaff implements domain.StaffDirectory.
func (r *Repository) GetStaff(ctx context.Context, tenantID, staffID string) (*domain.StaffRecord, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id=$1 AND staff_id=$2`

	var out *domain.StaffRecord
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		s, err := scanStaff(tx.QueryRow(ctx, query, tenantID, staffID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrStaffNotFound
			}
			return err
		}
		out = &s
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "get staff %s", staffID)
	}
	return out, nil
}

var planQueries = map[domain.PlanTable]string{
	domain.PlanTableMembership: `SELECT plan_id, name, price::text, duration_days, 0, ''
        FROM membership_plans WHERE tenant_id=$1 AND plan_id = ANY($2)`,
	domain.PlanTablePT: `SELECT plan_id, name, price::text, duration_days, sessions, staff_id
        FROM pt_plans WHERE tenant_id=$1 AND plan_id = ANY($2)`,
}

// PlansByID implements domain.PlanStore. Deleted plans are simply absent from the result.
func (r *Repository) PlansByID(ctx context.Context, tenantID string, table domain.PlanTable, ids []string) (map[string]domain.PlanSnapshot, error) {
	out := make(map[string]domain.PlanSnapshot, len(ids))
	query, ok := planQueries[table]
	if !ok {
		return nil, eris.Errorf("unknown plan table %q", table)
	}
	if len(ids) == 0 {
		return out, nil
	}

	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, tenantID, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p     domain.PlanSnapshot
				price string
			)
			if err := rows.Scan(&p.ID, &p.Name, &price, &p.DurationDays, &p.Sessions, &p.StaffID); err != nil {
				return err
			}
			if p.Price, err = decimal.NewFromString(price); err != nil {
				return eris.Wrapf(err, "plan %s price", p.ID)
			}
			p.Table = table
			out[p.ID] = p
		}
		return rows.Err()
	})
	if err != nil {
		return nil, eris.Wrapf(err, "query %s plans", table)
	}
	return out, nil
}

func parseDecimals3(a, b, c string) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return da, decimal.Zero, decimal.Zero, err
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return da, db, decimal.Zero, err
	}
	dc, err := decimal.NewFromString(c)
	return da, db, dc, err
}
