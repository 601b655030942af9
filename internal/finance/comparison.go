package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"example.com/gymfinance/internal/domain"
)

// CompareMode selects the window a period is compared against.
type CompareMode string

const (
	CompareNone           CompareMode = ""
	ComparePreviousPeriod CompareMode = "previous-period"
	ComparePreviousYear   CompareMode = "previous-year"
)

// ParseCompareMode accepts "", "none", "previous-period" and "previous-year".
func ParseCompareMode(raw string) (CompareMode, error) {
	switch raw {
	case "", "none":
		return CompareNone, nil
	case string(ComparePreviousPeriod):
		return ComparePreviousPeriod, nil
	case string(ComparePreviousYear):
		return ComparePreviousYear, nil
	default:
		return CompareNone, fmt.Errorf("%w: %q", domain.ErrInvalidCompareMode, raw)
	}
}

// CompareWindow returns the window the primary window is compared against.
func CompareWindow(w domain.Window, mode CompareMode) (domain.Window, bool) {
	switch mode {
	case ComparePreviousPeriod:
		length := w.End.Sub(w.Start)
		return domain.Window{Start: w.Start.Add(-length), End: w.Start}, true
	case ComparePreviousYear:
		return domain.Window{Start: w.Start.AddDate(-1, 0, 0), End: w.End.AddDate(-1, 0, 0)}, true
	default:
		return domain.Window{}, false
	}
}

// Comparison reports growth of the primary window over the comparison window.
type Comparison struct {
	Mode      CompareMode      `json:"mode"`
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Breakdown RevenueBreakdown `json:"breakdown"`
	Growth    decimal.Decimal  `json:"growth"`
}

// Compare recomputes bucket totals for the comparison window and the growth of current over it.
func Compare(mode CompareMode, window domain.Window, current RevenueBreakdown, payments []domain.PaymentRecord, transactions []domain.LedgerTransaction) (*Comparison, bool) {
	cw, ok := CompareWindow(window, mode)
	if !ok {
		return nil, false
	}
	breakdown := RevenueBuckets(cw, payments, transactions)
	return &Comparison{
		Mode:      mode,
		Start:     cw.Start.Format("2006-01-02"),
		End:       cw.End.Format("2006-01-02"),
		Breakdown: breakdown,
		Growth:    percent(current.Total.Sub(breakdown.Total), breakdown.Total, 1),
	}, true
}
