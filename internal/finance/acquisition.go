package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

var marketingKeywords = []string{"marketing", "advertising"}

// MemberAcquisition relates new members to marketing spend.
type MemberAcquisition struct {
	NewMembers         int             `json:"new_members"`
	MarketingCosts     decimal.Decimal `json:"marketing_costs"`
	CostPerAcquisition decimal.Decimal `json:"cost_per_acquisition"`
}

// EstimateAcquisitionCost counts members who joined inside [start, end] (both ends inclusive)
// and divides marketing expenses in the same range by that count.
func EstimateAcquisitionCost(start, end time.Time, members []domain.MemberRecord, transactions []domain.LedgerTransaction) MemberAcquisition {
	var out MemberAcquisition
	for _, m := range members {
		if inClosedRange(m.JoinedAt, start, end) {
			out.NewMembers++
		}
	}
	for _, t := range transactions {
		if t.Type == domain.TransactionExpense && inClosedRange(t.Date, start, end) && isMarketing(t.Category) {
			out.MarketingCosts = out.MarketingCosts.Add(t.Amount)
		}
	}
	out.CostPerAcquisition = ratio(out.MarketingCosts, decimal.NewFromInt(int64(out.NewMembers))).Round(0)
	return out
}

func isMarketing(category string) bool {
	category = strings.ToLower(category)
	for _, kw := range marketingKeywords {
		if strings.Contains(category, kw) {
			return true
		}
	}
	return false
}

func inClosedRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
