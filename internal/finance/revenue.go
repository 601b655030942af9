package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

// RevenueBreakdown splits revenue by product line.
type RevenueBreakdown struct {
	Membership       decimal.Decimal    `json:"membership"`
	PersonalTraining decimal.Decimal    `json:"personal_training"`
	Other            decimal.Decimal    `json:"other"`
	Total            decimal.Decimal    `json:"total"`
	Percentages      RevenuePercentages `json:"percentages"`
}

// RevenuePercentages holds each bucket's share of the total, rounded to one decimal place.
type RevenuePercentages struct {
	Membership       decimal.Decimal `json:"membership"`
	PersonalTraining decimal.Decimal `json:"personal_training"`
	Other            decimal.Decimal `json:"other"`
}

// DiscountAnalysis summarises discounts granted on payments.
type DiscountAnalysis struct {
	TotalDiscounts   decimal.Decimal `json:"total_discounts"`
	DiscountedCount  int             `json:"discounted_count"`
	AverageDiscount  decimal.Decimal `json:"average_discount"`
	PotentialRevenue decimal.Decimal `json:"potential_revenue"`
}

// LineMargin is the revenue, cost and margin percentage of one product line.
type LineMargin struct {
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Margin  decimal.Decimal `json:"margin"`
}

// ProfitMargins holds per-line margins. Membership cost is total base salary paid,
// PT cost is total commission paid.
type ProfitMargins struct {
	Membership       LineMargin `json:"membership"`
	PersonalTraining LineMargin `json:"personal_training"`
}

// TrainerPerformance is the PT revenue attributed to a staff member alongside what they were paid.
type TrainerPerformance struct {
	StaffID        string          `json:"staff_id"`
	Name           string          `json:"name"`
	Revenue        decimal.Decimal `json:"revenue"`
	Sessions       int             `json:"sessions"`
	BaseSalaryPaid decimal.Decimal `json:"base_salary_paid"`
	CommissionPaid decimal.Decimal `json:"commission_paid"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
}

// ResolutionGap records a payment whose plan no longer exists.
type ResolutionGap struct {
	PaymentID string
	PlanID    string
	Table     domain.PlanTable
}

// RevenueInput carries the records for one aggregation. Records outside Window are ignored.
type RevenueInput struct {
	Window       domain.Window
	Payments     []domain.PaymentRecord
	Transactions []domain.LedgerTransaction
	Compensation []domain.CompensationRecord
	Staff        []domain.StaffRecord
	Plans        *PlanResolver
}

// RevenueReport is the output of AggregateRevenue.
type RevenueReport struct {
	Breakdown RevenueBreakdown
	Discounts DiscountAnalysis
	Margins   ProfitMargins
	Trainers  []TrainerPerformance
	Anomalies Anomalies
	Gaps      []ResolutionGap
}

// AggregateRevenue derives the revenue breakdown, discount stats, margins and trainer
// performance for the window.
func AggregateRevenue(in RevenueInput) RevenueReport {
	var report RevenueReport

	var membership, pt, totalDiscounts decimal.Decimal
	attributed := make(map[string]*TrainerPerformance)

	for _, p := range in.Payments {
		if !in.Window.Contains(p.PaidAt) {
			continue
		}
		category, classified := ClassifyPayment(p)
		if !classified {
			report.Anomalies.UnclassifiedPayments++
		}

		plan, resolved := in.Plans.Resolve(category, p.PlanID)
		if !resolved && p.PlanID != "" {
			table, _ := category.Table()
			report.Anomalies.UnresolvedPlans++
			report.Gaps = append(report.Gaps, ResolutionGap{PaymentID: p.ID, PlanID: p.PlanID, Table: table})
		}

		switch category {
		case CategoryPersonalTraining:
			pt = pt.Add(p.Amount)
			if resolved && plan.StaffID != "" {
				tp := attributed[plan.StaffID]
				if tp == nil {
					tp = &TrainerPerformance{StaffID: plan.StaffID}
					attributed[plan.StaffID] = tp
				}
				tp.Revenue = tp.Revenue.Add(p.Amount)
				tp.Sessions++
			}
		default:
			membership = membership.Add(p.Amount)
		}

		if p.Discount != nil {
			totalDiscounts = totalDiscounts.Add(*p.Discount)
			report.Discounts.DiscountedCount++
		}
	}

	other := incomeTotal(in.Window, in.Transactions)
	report.Breakdown = newBreakdown(membership, pt, other)

	report.Discounts.TotalDiscounts = totalDiscounts
	report.Discounts.AverageDiscount = ratio(totalDiscounts, decimal.NewFromInt(int64(report.Discounts.DiscountedCount))).Round(2)
	report.Discounts.PotentialRevenue = report.Breakdown.Total.Add(totalDiscounts)

	var baseCost, commissionCost decimal.Decimal
	paid := make(map[string]*TrainerPerformance)
	for _, c := range in.Compensation {
		if !in.Window.Contains(c.PaidAt) {
			continue
		}
		baseCost = baseCost.Add(c.BaseSalary)
		commissionCost = commissionCost.Add(c.Commission)

		tp := paid[c.StaffID]
		if tp == nil {
			tp = &TrainerPerformance{}
			paid[c.StaffID] = tp
		}
		tp.BaseSalaryPaid = tp.BaseSalaryPaid.Add(c.BaseSalary)
		tp.CommissionPaid = tp.CommissionPaid.Add(c.Commission)
		tp.TotalPaid = tp.TotalPaid.Add(c.Total)
	}

	report.Margins = ProfitMargins{
		Membership:       lineMargin(membership, baseCost),
		PersonalTraining: lineMargin(pt, commissionCost),
	}

	report.Trainers = trainerPerformance(in.Staff, attributed, paid)
	return report
}

// RevenueBuckets computes only the bucket totals and percentages for the window.
func RevenueBuckets(window domain.Window, payments []domain.PaymentRecord, transactions []domain.LedgerTransaction) RevenueBreakdown {
	var membership, pt decimal.Decimal
	for _, p := range payments {
		if !window.Contains(p.PaidAt) {
			continue
		}
		if category, _ := ClassifyPayment(p); category == CategoryPersonalTraining {
			pt = pt.Add(p.Amount)
		} else {
			membership = membership.Add(p.Amount)
		}
	}
	return newBreakdown(membership, pt, incomeTotal(window, transactions))
}

func newBreakdown(membership, pt, other decimal.Decimal) RevenueBreakdown {
	total := sum(membership, pt, other)
	return RevenueBreakdown{
		Membership:       membership,
		PersonalTraining: pt,
		Other:            other,
		Total:            total,
		Percentages: RevenuePercentages{
			Membership:       percent(membership, total, 1),
			PersonalTraining: percent(pt, total, 1),
			Other:            percent(other, total, 1),
		},
	}
}

func incomeTotal(window domain.Window, transactions []domain.LedgerTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		if t.Type == domain.TransactionIncome && window.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func lineMargin(revenue, cost decimal.Decimal) LineMargin {
	return LineMargin{
		Revenue: revenue,
		Cost:    cost,
		Margin:  percent(revenue.Sub(cost), revenue, 2),
	}
}

func trainerPerformance(staff []domain.StaffRecord, attributed, paid map[string]*TrainerPerformance) []TrainerPerformance {
	out := make([]TrainerPerformance, 0, len(staff))
	for _, s := range staff {
		tp := TrainerPerformance{StaffID: s.ID, Name: s.Name}
		if a, ok := attributed[s.ID]; ok {
			tp.Revenue = a.Revenue
			tp.Sessions = a.Sessions
		}
		if p, ok := paid[s.ID]; ok {
			tp.BaseSalaryPaid = p.BaseSalaryPaid
			tp.CommissionPaid = p.CommissionPaid
			tp.TotalPaid = p.TotalPaid
		}
		out = append(out, tp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].StaffID < out[j].StaffID
	})
	return out
}
