package finance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

const (
	// DefaultForecastMonths is the projection horizon used when the caller gives none.
	DefaultForecastMonths = 6
	// DefaultLookbackMonths is the history length the averages are drawn from.
	DefaultLookbackMonths = 12

	highConfidenceMonths = 3
	monthKeyLayout       = "2006-01"
)

// SeasonalRule adjusts income and expense for the months it covers.
type SeasonalRule struct {
	Name    string
	Months  []time.Month
	Income  decimal.Decimal
	Expense decimal.Decimal
}

func (r SeasonalRule) covers(m time.Month) bool {
	for _, month := range r.Months {
		if month == m {
			return true
		}
	}
	return false
}

// SeasonalRules are evaluated in order; the last rule covering a month wins.
var SeasonalRules = []SeasonalRule{
	{
		Name:    "low_season",
		Months:  []time.Month{time.June, time.July, time.August, time.September},
		Income:  decimal.RequireFromString("0.9"),
		Expense: decimal.NewFromInt(1),
	},
	{
		Name:    "festival",
		Months:  []time.Month{time.September, time.October},
		Income:  decimal.RequireFromString("1.15"),
		Expense: decimal.RequireFromString("1.2"),
	},
	{
		Name:    "high_season",
		Months:  []time.Month{time.November, time.December, time.January, time.February},
		Income:  decimal.RequireFromString("1.05"),
		Expense: decimal.NewFromInt(1),
	},
	{
		Name:    "new_year",
		Months:  []time.Month{time.January},
		Income:  decimal.RequireFromString("1.2"),
		Expense: decimal.NewFromInt(1),
	},
}

// SeasonalMultipliers returns the income and expense multipliers for a calendar month and
// the name of the rule that produced them ("regular" when no rule covers the month).
func SeasonalMultipliers(m time.Month) (income, expense decimal.Decimal, season string) {
	income, expense, season = decimal.NewFromInt(1), decimal.NewFromInt(1), "regular"
	for _, rule := range SeasonalRules {
		if rule.covers(m) {
			income, expense, season = rule.Income, rule.Expense, rule.Name
		}
	}
	return income, expense, season
}

// MonthlyCashFlow is the observed income and expense for one calendar month.
type MonthlyCashFlow struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// CashFlowProjection is the forecast for one future month.
type CashFlowProjection struct {
	Month             string          `json:"month"`
	ProjectedIncome   decimal.Decimal `json:"projected_income"`
	ProjectedExpense  decimal.Decimal `json:"projected_expense"`
	NetCashFlow       decimal.Decimal `json:"net_cash_flow"`
	IncomeMultiplier  decimal.Decimal `json:"income_multiplier"`
	ExpenseMultiplier decimal.Decimal `json:"expense_multiplier"`
	Season            string          `json:"season"`
	Confidence        string          `json:"confidence"`
}

// CashFlowInput carries the lookback records. Anchor is any instant in the last observed
// month; projections start the month after it.
type CashFlowInput struct {
	Lookback     domain.Window
	Anchor       time.Time
	Months       int
	Payments     []domain.PaymentRecord
	Transactions []domain.LedgerTransaction
	Compensation []domain.CompensationRecord
}

// CashFlowForecast bundles the historical series, its averages and the projections.
type CashFlowForecast struct {
	History     []MonthlyCashFlow    `json:"history"`
	AvgIncome   decimal.Decimal      `json:"avg_income"`
	AvgExpense  decimal.Decimal      `json:"avg_expense"`
	Projections []CashFlowProjection `json:"projections"`
}

// AnchorMonth returns the first instant of the month holding the last instant of w.
func AnchorMonth(w domain.Window) time.Time {
	last := w.End.Add(-time.Nanosecond).UTC()
	return time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// LookbackWindow returns the months calendar months ending with the anchor's month.
func LookbackWindow(anchor time.Time, months int) domain.Window {
	if months <= 0 {
		months = DefaultLookbackMonths
	}
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	return domain.Window{
		Start: first.AddDate(0, -(months - 1), 0),
		End:   first.AddDate(0, 1, 0),
	}
}

// ProjectCashFlow builds the monthly history and the seasonally adjusted forecast.
func ProjectCashFlow(in CashFlowInput) CashFlowForecast {
	months := in.Months
	if months <= 0 {
		months = DefaultForecastMonths
	}

	series := make(map[string]*MonthlyCashFlow)
	bucket := func(ts time.Time) *MonthlyCashFlow {
		key := ts.UTC().Format(monthKeyLayout)
		m := series[key]
		if m == nil {
			m = &MonthlyCashFlow{Month: key}
			series[key] = m
		}
		return m
	}

	for _, p := range in.Payments {
		if in.Lookback.Contains(p.PaidAt) {
			m := bucket(p.PaidAt)
			m.Income = m.Income.Add(p.Amount)
		}
	}
	for _, t := range in.Transactions {
		if !in.Lookback.Contains(t.Date) {
			continue
		}
		m := bucket(t.Date)
		switch t.Type {
		case domain.TransactionIncome:
			m.Income = m.Income.Add(t.Amount)
		case domain.TransactionExpense:
			m.Expense = m.Expense.Add(t.Amount)
		}
	}
	for _, c := range in.Compensation {
		if in.Lookback.Contains(c.PaidAt) {
			m := bucket(c.PaidAt)
			m.Expense = m.Expense.Add(c.Total)
		}
	}

	history := make([]MonthlyCashFlow, 0, len(series))
	var totalIncome, totalExpense decimal.Decimal
	for _, m := range series {
		history = append(history, *m)
		totalIncome = totalIncome.Add(m.Income)
		totalExpense = totalExpense.Add(m.Expense)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Month < history[j].Month })

	observed := decimal.NewFromInt(int64(len(history)))
	avgIncome := ratio(totalIncome, observed)
	avgExpense := ratio(totalExpense, observed)

	anchor := time.Date(in.Anchor.Year(), in.Anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	projections := make([]CashFlowProjection, 0, months)
	for i := 1; i <= months; i++ {
		target := anchor.AddDate(0, i, 0)
		im, em, season := SeasonalMultipliers(target.Month())

		income := avgIncome.Mul(im)
		expense := avgExpense.Mul(em)

		confidence := "medium"
		if i <= highConfidenceMonths {
			confidence = "high"
		}

		projections = append(projections, CashFlowProjection{
			Month:             target.Format(monthKeyLayout),
			ProjectedIncome:   income.Round(0),
			ProjectedExpense:  expense.Round(0),
			NetCashFlow:       income.Sub(expense).Round(0),
			IncomeMultiplier:  im,
			ExpenseMultiplier: em,
			Season:            season,
			Confidence:        confidence,
		})
	}

	return CashFlowForecast{
		History:     history,
		AvgIncome:   avgIncome.Round(2),
		AvgExpense:  avgExpense.Round(2),
		Projections: projections,
	}
}
