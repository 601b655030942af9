// Package events defines the ledger change events published by the payment, payroll
// and admin workflows.
package events

import "time"

// Ledger event types carried in the event_type header.
const (
	PaymentRecorded      = "payment.recorded"
	PaymentDeleted       = "payment.deleted"
	StaffPaymentRecorded = "staff_payment.recorded"
	TransactionRecorded  = "transaction.recorded"
	MemberJoined         = "member.joined"
	StaffUpdated         = "staff.updated"
	PlanDeleted          = "plan.deleted"
)

// LedgerChanged is the common payload of every ledger event.
type LedgerChanged struct {
	TenantID   string    `json:"tenant_id"`
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InvalidatesResults reports whether an event of this type can change computed analytics.
func InvalidatesResults(eventType string) bool {
	switch eventType {
	case PaymentRecorded, PaymentDeleted, StaffPaymentRecorded, TransactionRecorded,
		MemberJoined, StaffUpdated, PlanDeleted:
		return true
	default:
		return false
	}
}
