package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(year int, month time.Month, dd int) time.Time {
	return time.Date(year, month, dd, 10, 30, 0, 0, time.UTC)
}

func payment(id, tag, planID, amount string, paidAt time.Time) domain.PaymentRecord {
	return domain.PaymentRecord{ID: id, MemberID: "m-" + id, PlanCategory: tag, PlanID: planID, Amount: d(amount), PaidAt: paidAt}
}

func ptResolver(planStaff map[string]string) *PlanResolver {
	pt := make(map[string]domain.PlanSnapshot, len(planStaff))
	for planID, staffID := range planStaff {
		pt[planID] = domain.PlanSnapshot{ID: planID, Table: domain.PlanTablePT, StaffID: staffID}
	}
	return NewPlanResolver(map[domain.PlanTable]map[string]domain.PlanSnapshot{
		domain.PlanTablePT: pt,
		domain.PlanTableMembership: {
			"gold": {ID: "gold", Table: domain.PlanTableMembership},
		},
	})
}
