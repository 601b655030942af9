// Package analytics orchestrates ledger fetches and the finance calculators into the
// advanced analytics and payroll views.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"example.com/gymfinance/internal/cache"
	"example.com/gymfinance/internal/domain"
	"example.com/gymfinance/internal/finance"
	"example.com/gymfinance/internal/observability"
)

const (
	// DefaultFetchTimeout bounds the combined ledger fan-out.
	DefaultFetchTimeout = 10 * time.Second
	// MaxForecastMonths caps the projection horizon a caller may request.
	MaxForecastMonths = 24
	// DefaultPayrollMonths is the payroll history length used when none is given.
	DefaultPayrollMonths = 6
	// MaxPayrollMonths caps the payroll history length.
	MaxPayrollMonths = 24

	dateLayout = "2006-01-02"
)

// Stores groups the read collaborators the service fetches from.
type Stores struct {
	Ledger  domain.LedgerStore
	Plans   domain.PlanStore
	Staff   domain.StaffDirectory
	Members domain.MemberDirectory
}

// Config holds the engine tunables.
type Config struct {
	LookbackMonths int
	ForecastMonths int
	FetchTimeout   time.Duration
	DefaultCompare finance.CompareMode
}

func (c Config) withDefaults() Config {
	if c.LookbackMonths <= 0 {
		c.LookbackMonths = finance.DefaultLookbackMonths
	}
	if c.ForecastMonths <= 0 {
		c.ForecastMonths = finance.DefaultForecastMonths
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}

// Option customises a Service.
type Option func(*Service)

// WithCache enables read-through caching of computed results.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service computes analytics and payroll for a tenant.
type Service struct {
	stores Stores
	cfg    Config
	cache  cache.Cache
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(stores Stores, cfg Config, opts ...Option) *Service {
	s := &Service{
		stores: stores,
		cfg:    cfg.withDefaults(),
		cache:  cache.NoopCache{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes one advanced analytics computation.
type Request struct {
	Window         domain.Window
	ForecastMonths int
	Compare        finance.CompareMode
}

// AdvancedAnalytics is the assembled result for one window.
type AdvancedAnalytics struct {
	Start              string                       `json:"start"`
	End                string                       `json:"end"`
	RevenueBreakdown   finance.RevenueBreakdown     `json:"revenue_breakdown"`
	DiscountAnalysis   finance.DiscountAnalysis     `json:"discount_analysis"`
	TrainerPerformance []finance.TrainerPerformance `json:"trainer_performance"`
	ProfitMargins      finance.ProfitMargins        `json:"profit_margins"`
	MemberAcquisition  finance.MemberAcquisition    `json:"member_acquisition"`
	CashFlow           finance.CashFlowForecast     `json:"cash_flow"`
	Comparison         *finance.Comparison          `json:"comparison,omitempty"`
	Anomalies          finance.Anomalies            `json:"anomalies"`
}

func (s *Service) normalize(req Request) (Request, error) {
	if err := req.Window.Validate(); err != nil {
		return req, err
	}
	req.Window = domain.Window{Start: req.Window.Start.UTC(), End: req.Window.End.UTC()}

	switch {
	case req.ForecastMonths == 0:
		req.ForecastMonths = s.cfg.ForecastMonths
	case req.ForecastMonths < 0 || req.ForecastMonths > MaxForecastMonths:
		return req, eris.Wrapf(domain.ErrInvalidHorizon, "forecast months %d", req.ForecastMonths)
	}

	if req.Compare == finance.CompareNone {
		req.Compare = s.cfg.DefaultCompare
	}
	if _, err := finance.ParseCompareMode(string(req.Compare)); err != nil {
		return req, err
	}
	return req, nil
}

// ComputeAdvancedAnalytics fetches every record the window needs in one concurrent
// pass and derives the full analytics view. Nothing partial is returned on failure.
func (s *Service) ComputeAdvancedAnalytics(ctx context.Context, tenantID string, req Request) (*AdvancedAnalytics, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	key := cache.Key(tenantID, "analytics",
		req.Window.Start.Format(time.RFC3339), req.Window.End.Format(time.RFC3339),
		string(req.Compare), fmt.Sprint(req.ForecastMonths))
	var cached AdvancedAnalytics
	if s.cacheGet(ctx, "analytics", key, &cached) {
		return &cached, nil
	}

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("tenant_id", tenantID))

	anchor := finance.AnchorMonth(req.Window)
	lookback := finance.LookbackWindow(anchor, s.cfg.LookbackMonths)
	compareWindow, comparing := finance.CompareWindow(req.Window, req.Compare)

	span := req.Window.Span(lookback)
	if comparing {
		span = span.Span(compareWindow)
	}

	records, err := s.fetchAnalytics(ctx, tenantID, req.Window, span)
	if err != nil {
		logger.Warn("analytics fetch failed", zap.Error(err))
		return nil, err
	}

	report := finance.AggregateRevenue(finance.RevenueInput{
		Window:       req.Window,
		Payments:     records.payments,
		Transactions: records.transactions,
		Compensation: records.compensation,
		Staff:        records.staff,
		Plans:        records.plans,
	})
	s.reportGaps(logger, report.Gaps)

	out := &AdvancedAnalytics{
		Start:              req.Window.Start.Format(dateLayout),
		End:                req.Window.End.Format(dateLayout),
		RevenueBreakdown:   report.Breakdown,
		DiscountAnalysis:   report.Discounts,
		TrainerPerformance: report.Trainers,
		ProfitMargins:      report.Margins,
		MemberAcquisition:  finance.EstimateAcquisitionCost(req.Window.Start, req.Window.End, records.members, records.transactions),
		CashFlow: finance.ProjectCashFlow(finance.CashFlowInput{
			Lookback:     lookback,
			Anchor:       anchor,
			Months:       req.ForecastMonths,
			Payments:     records.payments,
			Transactions: records.transactions,
			Compensation: records.compensation,
		}),
		Anomalies: report.Anomalies,
	}
	if cmp, ok := finance.Compare(req.Compare, req.Window, report.Breakdown, records.payments, records.transactions); ok {
		out.Comparison = cmp
	}

	observability.RecordComputation("advanced_analytics", time.Now())
	logger.Info("analytics computed",
		zap.String("start", out.Start),
		zap.String("end", out.End),
		zap.String("total_revenue", out.RevenueBreakdown.Total.String()),
		zap.Int("unresolved_plans", out.Anomalies.UnresolvedPlans),
		zap.Int("unclassified_payments", out.Anomalies.UnclassifiedPayments),
	)

	s.cacheSet(ctx, key, out)
	return out, nil
}

// ComputeCompensation returns one staff member's pay for a billing month.
func (s *Service) ComputeCompensation(ctx context.Context, tenantID, staffID string, month time.Month, year int) (*finance.CompensationResult, error) {
	if !finance.ValidPeriod(month, year) {
		return nil, eris.Wrapf(domain.ErrInvalidPeriod, "month %d year %d", int(month), year)
	}

	key := cache.Key(tenantID, "compensation", staffID, fmt.Sprint(int(month)), fmt.Sprint(year))
	var cached finance.CompensationResult
	if s.cacheGet(ctx, "compensation", key, &cached) {
		return &cached, nil
	}

	staff, payments, plans, err := s.fetchCompensation(ctx, tenantID, staffID, finance.BillingCycle(month, year))
	if err != nil {
		return nil, err
	}

	result, err := finance.Compensation(*staff, month, year, payments, plans)
	if err != nil {
		return nil, err
	}

	observability.RecordComputation("compensation", time.Now())
	s.cacheSet(ctx, key, result)
	return &result, nil
}

// PayrollHistory computes compensation for the trailing months ending with the month of
// asOf, oldest first. months of zero selects DefaultPayrollMonths.
func (s *Service) PayrollHistory(ctx context.Context, tenantID, staffID string, months int, asOf time.Time) ([]finance.CompensationResult, error) {
	switch {
	case months == 0:
		months = DefaultPayrollMonths
	case months < 0 || months > MaxPayrollMonths:
		return nil, eris.Wrapf(domain.ErrInvalidHorizon, "payroll months %d", months)
	}

	last := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	history := make([]finance.CompensationResult, 0, months)
	for i := months - 1; i >= 0; i-- {
		period := last.AddDate(0, -i, 0)
		result, err := s.ComputeCompensation(ctx, tenantID, staffID, period.Month(), period.Year())
		if err != nil {
			return nil, err
		}
		history = append(history, *result)
	}
	return history, nil
}

func (s *Service) reportGaps(logger *zap.Logger, gaps []finance.ResolutionGap) {
	perTable := make(map[domain.PlanTable]int)
	for _, gap := range gaps {
		perTable[gap.Table]++
		logger.Warn("plan reference unresolved",
			zap.String("payment_id", gap.PaymentID),
			zap.String("plan_id", gap.PlanID),
			zap.String("table", string(gap.Table)),
		)
	}
	for table, n := range perTable {
		observability.RecordUnresolvedPlans(string(table), n)
	}
}

func (s *Service) cacheGet(ctx context.Context, kind, key string, dest any) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		hit = false
	}
	observability.RecordCacheLookup(kind, hit)
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateTenant drops every cached result for the tenant.
func (s *Service) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	n, err := s.cache.InvalidateTenant(ctx, tenantID)
	if err != nil {
		return n, eris.Wrapf(err, "invalidate tenant %s", tenantID)
	}
	return n, nil
}

func classifyFetchError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		observability.RecordFetchFailure(observability.FetchReasonTimeout)
		return eris.Wrap(domain.ErrDataFetchTimeout, err.Error())
	}
	if errors.Is(err, domain.ErrStaffNotFound) {
		return err
	}
	observability.RecordFetchFailure(observability.FetchReasonError)
	return eris.Wrap(domain.ErrDataFetch, err.Error())
}
