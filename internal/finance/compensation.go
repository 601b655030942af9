package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

// billingCycleDay is the first day of a billing cycle; a cycle runs from this day of the
// previous month through the day before it in the labelled month.
const billingCycleDay = 21

// CompensationResult is one staff member's pay for one billing month.
type CompensationResult struct {
	StaffID            string          `json:"staff_id"`
	Month              time.Month      `json:"month"`
	Year               int             `json:"year"`
	BaseSalaryProRated decimal.Decimal `json:"base_salary_prorated"`
	Commission         decimal.Decimal `json:"commission"`
	TotalPayable       decimal.Decimal `json:"total_payable"`
	DaysInMonth        int             `json:"days_in_month"`
	LeaveDays          int             `json:"leave_days"`
	PTClients          int             `json:"pt_clients"`
	CycleStart         time.Time       `json:"cycle_start"`
	CycleEnd           time.Time       `json:"cycle_end"`
}

// BillingCycle returns the commission window for (month, year): the 21st of the previous
// month through the 20th of month, inclusive, as a half-open UTC window.
func BillingCycle(month time.Month, year int) domain.Window {
	return domain.Window{
		Start: time.Date(year, month-1, billingCycleDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, month, billingCycleDay, 0, 0, 0, 0, time.UTC),
	}
}

// DaysInMonth returns the calendar length of the month.
func DaysInMonth(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidPeriod reports whether month and year name a real billing month.
func ValidPeriod(month time.Month, year int) bool {
	return month >= time.January && month <= time.December && year > 0
}

// Compensation computes prorated base pay and commission for one staff member and billing month.
// payments may contain any records; only PT payments governed by the staff member and paid
// inside the billing cycle count toward commission. Leave days are counted against the full
// calendar month, not the billing cycle.
func Compensation(staff domain.StaffRecord, month time.Month, year int, payments []domain.PaymentRecord, plans *PlanResolver) (CompensationResult, error) {
	if !ValidPeriod(month, year) {
		return CompensationResult{}, domain.ErrInvalidPeriod
	}

	days := DaysInMonth(month, year)
	leaves := leaveDaysInMonth(staff.LeaveDates, month, year)
	worked := days - leaves
	if worked < 0 {
		worked = 0
	}

	base := staff.BaseSalary.Mul(decimal.NewFromInt(int64(worked))).Div(decimal.NewFromInt(int64(days)))

	cycle := BillingCycle(month, year)
	clients := 0
	collected := decimal.Zero
	for _, p := range payments {
		if !cycle.Contains(p.PaidAt) {
			continue
		}
		category, _ := ClassifyPayment(p)
		if category != CategoryPersonalTraining {
			continue
		}
		plan, ok := plans.Resolve(category, p.PlanID)
		if !ok || plan.StaffID != staff.ID {
			continue
		}
		clients++
		collected = collected.Add(p.Amount)
	}

	commission := decimal.Zero
	switch staff.CommissionType {
	case domain.CommissionFixed:
		commission = staff.CommissionValue.Mul(decimal.NewFromInt(int64(clients)))
	case domain.CommissionPercentage:
		commission = collected.Mul(staff.CommissionValue).Div(hundred)
	}

	base = base.Round(2)
	commission = commission.Round(2)

	return CompensationResult{
		StaffID:            staff.ID,
		Month:              month,
		Year:               year,
		BaseSalaryProRated: base,
		Commission:         commission,
		TotalPayable:       base.Add(commission),
		DaysInMonth:        days,
		LeaveDays:          leaves,
		PTClients:          clients,
		CycleStart:         cycle.Start,
		CycleEnd:           cycle.End.AddDate(0, 0, -1),
	}, nil
}

func leaveDaysInMonth(leaves []time.Time, month time.Month, year int) int {
	seen := make(map[int]struct{}, len(leaves))
	for _, leave := range leaves {
		y, m, d := leave.Date()
		if y == year && m == month {
			seen[d] = struct{}{}
		}
	}
	return len(seen)
}
