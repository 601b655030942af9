package analytics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"example.com/gymfinance/internal/domain"
	"example.com/gymfinance/internal/finance"
	"example.com/gymfinance/internal/observability"
)

type analyticsRecords struct {
	payments     []domain.PaymentRecord
	compensation []domain.CompensationRecord
	transactions []domain.LedgerTransaction
	members      []domain.MemberRecord
	staff        []domain.StaffRecord
	plans        *finance.PlanResolver
}

// fetchAnalytics runs the five ledger reads concurrently, then resolves plan references,
// all under one deadline.
func (s *Service) fetchAnalytics(ctx context.Context, tenantID string, window, span domain.Window) (*analyticsRecords, error) {
	started := time.Now()
	defer func() { observability.ObserveFetch(time.Since(started)) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	// acquisition counts the window end inclusively
	if !span.End.After(window.End) {
		span.End = window.End.Add(time.Nanosecond)
	}

	var out analyticsRecords
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.payments, err = s.stores.Ledger.PaymentsBetween(gctx, tenantID, span.Start, span.End)
		return eris.Wrap(err, "fetch payments")
	})
	g.Go(func() error {
		var err error
		out.compensation, err = s.stores.Ledger.CompensationBetween(gctx, tenantID, span.Start, span.End)
		return eris.Wrap(err, "fetch compensation")
	})
	g.Go(func() error {
		var err error
		out.transactions, err = s.stores.Ledger.TransactionsBetween(gctx, tenantID, span.Start, span.End)
		return eris.Wrap(err, "fetch transactions")
	})
	g.Go(func() error {
		var err error
		out.members, err = s.stores.Members.MembersJoinedBetween(gctx, tenantID, window.Start, window.End)
		return eris.Wrap(err, "fetch members")
	})
	g.Go(func() error {
		var err error
		out.staff, err = s.stores.Staff.ListStaff(gctx, tenantID)
		return eris.Wrap(err, "fetch staff")
	})
	if err := g.Wait(); err != nil {
		return nil, classifyFetchError(ctx, err)
	}

	plans, err := s.resolvePlans(ctx, tenantID, out.payments)
	if err != nil {
		return nil, classifyFetchError(ctx, err)
	}
	out.plans = plans
	return &out, nil
}

// fetchCompensation loads the staff record and the billing-cycle payments concurrently.
func (s *Service) fetchCompensation(ctx context.Context, tenantID, staffID string, cycle domain.Window) (*domain.StaffRecord, []domain.PaymentRecord, *finance.PlanResolver, error) {
	started := time.Now()
	defer func() { observability.ObserveFetch(time.Since(started)) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var (
		staff    *domain.StaffRecord
		payments []domain.PaymentRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		staff, err = s.stores.Staff.GetStaff(gctx, tenantID, staffID)
		if err == nil && staff == nil {
			err = domain.ErrStaffNotFound
		}
		return eris.Wrapf(err, "fetch staff %s", staffID)
	})
	g.Go(func() error {
		var err error
		payments, err = s.stores.Ledger.PaymentsBetween(gctx, tenantID, cycle.Start, cycle.End)
		return eris.Wrap(err, "fetch payments")
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, classifyFetchError(ctx, err)
	}

	plans, err := s.resolvePlans(ctx, tenantID, payments)
	if err != nil {
		return nil, nil, nil, classifyFetchError(ctx, err)
	}
	return staff, payments, plans, nil
}

// resolvePlans issues one batched lookup per plan table and builds the per-request resolver.
func (s *Service) resolvePlans(ctx context.Context, tenantID string, payments []domain.PaymentRecord) (*finance.PlanResolver, error) {
	wanted := finance.PlanIDsByTable(payments)
	results := make(map[domain.PlanTable]map[string]domain.PlanSnapshot, len(wanted))
	if len(wanted) == 0 {
		return finance.NewPlanResolver(results), nil
	}

	type lookup struct {
		table domain.PlanTable
		plans map[string]domain.PlanSnapshot
	}
	found := make([]lookup, 0, len(wanted))
	for table := range wanted {
		found = append(found, lookup{table: table})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range found {
		i := i
		g.Go(func() error {
			plans, err := s.stores.Plans.PlansByID(gctx, tenantID, found[i].table, wanted[found[i].table])
			found[i].plans = plans
			return eris.Wrapf(err, "lookup %s plans", found[i].table)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, l := range found {
		results[l.table] = l.plans
	}
	return finance.NewPlanResolver(results), nil
}
