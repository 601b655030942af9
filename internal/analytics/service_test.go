package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"example.com/gymfinance/internal/cache"
	"example.com/gymfinance/internal/domain"
	"example.com/gymfinance/internal/finance"
	"example.com/gymfinance/internal/persistence/memory"
)

const tenant = "gym-1"

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ts(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 11, 0, 0, 0, time.UTC)
}

func march2025() domain.Window {
	return domain.Window{
		Start: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
	}
}

func seededStore() *memory.Store {
	store := memory.NewStore()
	store.PutStaff(tenant, domain.StaffRecord{ID: "S1", Name: "Asha", BaseSalary: dec("3000"), CommissionType: domain.CommissionPercentage, CommissionValue: dec("10")})
	store.PutStaff(tenant, domain.StaffRecord{ID: "S2", Name: "Ravi", BaseSalary: dec("2000"), CommissionType: domain.CommissionFixed})
	store.PutPlan(tenant, domain.PlanSnapshot{ID: "gold", Table: domain.PlanTableMembership, Name: "Gold", Price: dec("2000"), DurationDays: 30})
	store.PutPlan(tenant, domain.PlanSnapshot{ID: "pt-1", Table: domain.PlanTablePT, Name: "PT x8", Price: dec("1500"), Sessions: 8, StaffID: "S1"})

	store.AddPayments(tenant,
		domain.PaymentRecord{ID: "p1", MemberID: "m1", PlanCategory: "gym", PlanID: "gold", Amount: dec("2000"), PaidAt: ts(2025, time.March, 3)},
		domain.PaymentRecord{ID: "p2", MemberID: "m2", PlanCategory: "membership", PlanID: "gold-retired", Amount: dec("3000"), PaidAt: ts(2025, time.March, 7)},
		domain.PaymentRecord{ID: "p3", MemberID: "m3", PlanCategory: "pt", PlanID: "pt-1", Amount: dec("1500"), PaidAt: ts(2025, time.March, 12)},
		domain.PaymentRecord{ID: "p0", MemberID: "m0", PlanCategory: "membership", PlanID: "gold", Amount: dec("3500"), PaidAt: ts(2024, time.March, 12)},
	)
	store.AddTransactions(tenant,
		domain.LedgerTransaction{ID: "t1", Type: domain.TransactionIncome, Category: "locker rent", Amount: dec("500"), Date: ts(2025, time.March, 15)},
		domain.LedgerTransaction{ID: "t2", Type: domain.TransactionExpense, Category: "Marketing", Amount: dec("1000"), Date: ts(2025, time.March, 10)},
	)
	store.AddCompensation(tenant,
		domain.CompensationRecord{ID: "c1", StaffID: "S1", BaseSalary: dec("3000"), Commission: dec("150"), Total: dec("3150"), PaidAt: ts(2025, time.March, 28), Month: time.March, Year: 2025},
		domain.CompensationRecord{ID: "c2", StaffID: "S2", BaseSalary: dec("2000"), Total: dec("2000"), PaidAt: ts(2025, time.March, 28), Month: time.March, Year: 2025},
	)
	store.AddMembers(tenant,
		domain.MemberRecord{ID: "m1", JoinedAt: ts(2025, time.March, 1)},
		domain.MemberRecord{ID: "m2", JoinedAt: ts(2025, time.March, 7)},
		domain.MemberRecord{ID: "m3", JoinedAt: ts(2025, time.March, 12)},
		domain.MemberRecord{ID: "m4", JoinedAt: ts(2025, time.March, 31)},
		domain.MemberRecord{ID: "m0", JoinedAt: ts(2024, time.March, 12)},
	)
	return store
}

func storesFrom(store *memory.Store) Stores {
	return Stores{Ledger: store, Plans: store, Staff: store, Members: store}
}

type slowLedger struct{ *memory.Store }

func (slowLedger) PaymentsBetween(ctx context.Context, _ string, _, _ time.Time) ([]domain.PaymentRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenLedger struct{ *memory.Store }

func (brokenLedger) TransactionsBetween(context.Context, string, time.Time, time.Time) ([]domain.LedgerTransaction, error) {
	return nil, errors.New("connection refused")
}

func TestComputeAdvancedAnalytics(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewService(storesFrom(seededStore()), Config{}, WithLogger(zap.New(core)))

	out, err := svc.ComputeAdvancedAnalytics(context.Background(), tenant, Request{
		Window:  march2025(),
		Compare: finance.ComparePreviousYear,
	})
	require.NoError(t, err)

	rb := out.RevenueBreakdown
	require.True(t, rb.Membership.Equal(dec("5000")))
	require.True(t, rb.PersonalTraining.Equal(dec("1500")))
	require.True(t, rb.Other.Equal(dec("500")))
	require.True(t, rb.Total.Equal(dec("7000")))
	require.Equal(t, "71.4", rb.Percentages.Membership.String())

	require.Equal(t, 1, out.Anomalies.UnresolvedPlans)
	require.Equal(t, 1, logs.FilterMessage("plan reference unresolved").Len())

	require.Equal(t, "0", out.ProfitMargins.Membership.Margin.String())
	require.Equal(t, "90", out.ProfitMargins.PersonalTraining.Margin.String())

	require.Len(t, out.TrainerPerformance, 2)
	require.Equal(t, "S1", out.TrainerPerformance[0].StaffID)
	require.True(t, out.TrainerPerformance[0].Revenue.Equal(dec("1500")))

	require.Equal(t, 4, out.MemberAcquisition.NewMembers)
	require.True(t, out.MemberAcquisition.CostPerAcquisition.Equal(dec("250")))

	require.Len(t, out.CashFlow.Projections, finance.DefaultForecastMonths)
	april := out.CashFlow.Projections[0]
	require.Equal(t, "2025-04", april.Month)
	require.True(t, april.ProjectedIncome.Equal(dec("7000")))
	require.True(t, april.ProjectedExpense.Equal(dec("6150")))
	require.True(t, april.NetCashFlow.Equal(dec("850")))

	require.NotNil(t, out.Comparison)
	require.True(t, out.Comparison.Breakdown.Total.Equal(dec("3500")))
	require.Equal(t, "100", out.Comparison.Growth.String())
}

func TestComputeAdvancedAnalyticsIsRepeatable(t *testing.T) {
	svc := NewService(storesFrom(seededStore()), Config{}, WithLogger(zaptest.NewLogger(t)))
	req := Request{Window: march2025(), Compare: finance.ComparePreviousPeriod, ForecastMonths: 3}

	first, err := svc.ComputeAdvancedAnalytics(context.Background(), tenant, req)
	require.NoError(t, err)
	second, err := svc.ComputeAdvancedAnalytics(context.Background(), tenant, req)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first.CashFlow.Projections, 3)
}

func TestComputeAdvancedAnalyticsRejectsBadRequests(t *testing.T) {
	svc := NewService(storesFrom(seededStore()), Config{})
	ctx := context.Background()

	inverted := domain.Window{Start: march2025().End, End: march2025().Start}
	_, err := svc.ComputeAdvancedAnalytics(ctx, tenant, Request{Window: inverted})
	require.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = svc.ComputeAdvancedAnalytics(ctx, tenant, Request{Window: march2025(), ForecastMonths: MaxForecastMonths + 1})
	require.ErrorIs(t, err, domain.ErrInvalidHorizon)

	_, err = svc.ComputeAdvancedAnalytics(ctx, tenant, Request{Window: march2025(), Compare: "yesterday"})
	require.ErrorIs(t, err, domain.ErrInvalidCompareMode)
}

func TestComputeAdvancedAnalyticsTimeout(t *testing.T) {
	store := seededStore()
	stores := storesFrom(store)
	stores.Ledger = slowLedger{store}
	svc := NewService(stores, Config{FetchTimeout: 20 * time.Millisecond})

	out, err := svc.ComputeAdvancedAnalytics(context.Background(), tenant, Request{Window: march2025()})
	require.Nil(t, out)
	require.ErrorIs(t, err, domain.ErrDataFetchTimeout)
}

func TestComputeAdvancedAnalyticsFetchFailure(t *testing.T) {
	store := seededStore()
	stores := storesFrom(store)
	stores.Ledger = brokenLedger{store}
	svc := NewService(stores, Config{})

	out, err := svc.ComputeAdvancedAnalytics(context.Background(), tenant, Request{Window: march2025()})
	require.Nil(t, out)
	require.ErrorIs(t, err, domain.ErrDataFetch)
	require.False(t, errors.Is(err, domain.ErrDataFetchTimeout))
}

func TestComputeAdvancedAnalyticsReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedisCache(client, time.Minute)

	store := seededStore()
	svc := NewService(storesFrom(store), Config{}, WithCache(rc))
	first, err := svc.ComputeAdvancedAnalytics(context.Background(), tenant, Request{Window: march2025()})
	require.NoError(t, err)

	broken := storesFrom(store)
	broken.Ledger = brokenLedger{store}
	cachedSvc := NewService(broken, Config{}, WithCache(rc))
	second, err := cachedSvc.ComputeAdvancedAnalytics(context.Background(), tenant, Request{Window: march2025()})
	require.NoError(t, err)
	require.True(t, second.RevenueBreakdown.Total.Equal(first.RevenueBreakdown.Total))
	require.Equal(t, first.Anomalies, second.Anomalies)

	n, err := cachedSvc.InvalidateTenant(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = cachedSvc.ComputeAdvancedAnalytics(context.Background(), tenant, Request{Window: march2025()})
	require.ErrorIs(t, err, domain.ErrDataFetch)
}

func TestComputeCompensation(t *testing.T) {
	svc := NewService(storesFrom(seededStore()), Config{})

	res, err := svc.ComputeCompensation(context.Background(), tenant, "S1", time.March, 2025)
	require.NoError(t, err)
	require.Equal(t, 1, res.PTClients)
	require.True(t, res.BaseSalaryProRated.Equal(dec("3000")))
	require.True(t, res.Commission.Equal(dec("150")))
	require.True(t, res.TotalPayable.Equal(dec("3150")))

	_, err = svc.ComputeCompensation(context.Background(), tenant, "nobody", time.March, 2025)
	require.ErrorIs(t, err, domain.ErrStaffNotFound)

	_, err = svc.ComputeCompensation(context.Background(), tenant, "S1", time.Month(13), 2025)
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestPayrollHistory(t *testing.T) {
	svc := NewService(storesFrom(seededStore()), Config{})

	history, err := svc.PayrollHistory(context.Background(), tenant, "S1", 3, ts(2025, time.March, 15))
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, time.January, history[0].Month)
	require.Equal(t, time.March, history[2].Month)
	require.True(t, history[0].Commission.IsZero())
	require.True(t, history[2].Commission.Equal(dec("150")))

	history, err = svc.PayrollHistory(context.Background(), tenant, "S1", 0, ts(2025, time.February, 1))
	require.NoError(t, err)
	require.Len(t, history, DefaultPayrollMonths)
	require.Equal(t, 2024, history[0].Year)
	require.Equal(t, time.September, history[0].Month)

	_, err = svc.PayrollHistory(context.Background(), tenant, "S1", MaxPayrollMonths+1, ts(2025, time.March, 15))
	require.ErrorIs(t, err, domain.ErrInvalidHorizon)
}
