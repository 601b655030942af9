// Package domain defines the ledger records and collaborator contracts consumed by the finance engine.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes general ledger income from expenses.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// CommissionType selects how a trainer's commission is derived.
type CommissionType string

const (
	CommissionFixed      CommissionType = "fixed"
	CommissionPercentage CommissionType = "percentage"
)

// PlanTable identifies which plan-definition table a plan lives in.
type PlanTable string

const (
	PlanTableMembership PlanTable = "membership"
	PlanTablePT         PlanTable = "pt"
)

// PaymentRecord is a membership or personal-training payment recorded by the payment workflow.
type PaymentRecord struct {
	ID           string
	MemberID     string
	PlanCategory string // raw tag, legacy or current spelling
	PlanID       string
	Amount       decimal.Decimal
	PaidAt       time.Time
	Discount     *decimal.Decimal
}

// CompensationRecord is a payout made to a staff member for a billing month.
type CompensationRecord struct {
	ID         string
	StaffID    string
	BaseSalary decimal.Decimal
	Commission decimal.Decimal
	Total      decimal.Decimal
	PaidAt     time.Time
	Month      time.Month
	Year       int
}

// LedgerTransaction is a general income or expense entry.
type LedgerTransaction struct {
	ID       string
	Type     TransactionType
	Category string
	Amount   decimal.Decimal
	Date     time.Time
}

// MemberRecord carries the member fields the engine needs.
type MemberRecord struct {
	ID       string
	JoinedAt time.Time
}

// StaffRecord describes a staff member's pay terms.
type StaffRecord struct {
	ID              string
	Name            string
	BaseSalary      decimal.Decimal
	CommissionType  CommissionType
	CommissionValue decimal.Decimal
	LeaveDates      []time.Time
}

// PlanSnapshot is the current definition of a membership or PT plan.
// StaffID is only set for PT plans and names the trainer the revenue is attributed to.
type PlanSnapshot struct {
	ID           string
	Table        PlanTable
	Name         string
	Price        decimal.Decimal
	DurationDays int
	Sessions     int
	StaffID      string
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty or inverted windows.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrInvalidWindow
	}
	if !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether ts falls inside [Start, End).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Span returns the smallest window covering both w and other.
func (w Window) Span(other Window) Window {
	out := w
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}
