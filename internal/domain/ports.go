package domain

import (
	"context"
	"time"
)

// LedgerStore exposes range queries over the financial ledger.
type LedgerStore interface {
	PaymentsBetween(ctx context.Context, tenantID string, start, end time.Time) ([]PaymentRecord, error)
	CompensationBetween(ctx context.Context, tenantID string, start, end time.Time) ([]CompensationRecord, error)
	TransactionsBetween(ctx context.Context, tenantID string, start, end time.Time) ([]LedgerTransaction, error)
}

// PlanStore looks up plan definitions in batches. IDs that are absent from the
// returned map belong to plans that no longer exist.
type PlanStore interface {
	PlansByID(ctx context.Context, tenantID string, table PlanTable, ids []string) (map[string]PlanSnapshot, error)
}

// StaffDirectory exposes staff pay terms.
type StaffDirectory interface {
	ListStaff(ctx context.Context, tenantID string) ([]StaffRecord, error)
	GetStaff(ctx context.Context, tenantID, staffID string) (*StaffRecord, error)
}

// MemberDirectory exposes member join dates. Both range ends are inclusive.
type MemberDirectory interface {
	MembersJoinedBetween(ctx context.Context, tenantID string, start, end time.Time) ([]MemberRecord, error)
}
