// Package memory provides an in-process ledger used for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/gymfinance/internal/domain"
)

type tenantLedger struct {
	payments     []domain.PaymentRecord
	compensation []domain.CompensationRecord
	transactions []domain.LedgerTransaction
	members      []domain.MemberRecord
	staff        map[string]domain.StaffRecord
	plans        map[domain.PlanTable]map[string]domain.PlanSnapshot
}

// Store implements every read port over in-memory slices.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*tenantLedger
}

var (
	_ domain.LedgerStore     = (*Store)(nil)
	_ domain.PlanStore       = (*Store)(nil)
	_ domain.StaffDirectory  = (*Store)(nil)
	_ domain.MemberDirectory = (*Store)(nil)
)

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{tenants: make(map[string]*tenantLedger)}
}

func (s *Store) tenant(tenantID string) *tenantLedger {
	t := s.tenants[tenantID]
	if t == nil {
		t = &tenantLedger{
			staff: make(map[string]domain.StaffRecord),
			plans: make(map[domain.PlanTable]map[string]domain.PlanSnapshot),
		}
		s.tenants[tenantID] = t
	}
	return t
}

// AddPayments appends payments, assigning IDs where missing.
func (s *Store) AddPayments(tenantID string, payments ...domain.PaymentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenant(tenantID)
	for _, p := range payments {
		if strings.TrimSpace(p.ID) == "" {
			p.ID = uuid.NewString()
		}
		t.payments = append(t.payments, p)
	}
}

// AddCompensation appends compensation payouts.
func (s *Store) AddCompensation(tenantID string, records ...domain.CompensationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenant(tenantID)
	for _, c := range records {
		if strings.TrimSpace(c.ID) == "" {
			c.ID = uuid.NewString()
		}
		t.compensation = append(t.compensation, c)
	}
}

// AddTransactions appends general ledger transactions.
func (s *Store) AddTransactions(tenantID string, txs ...domain.LedgerTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenant(tenantID)
	for _, tx := range txs {
		if strings.TrimSpace(tx.ID) == "" {
			tx.ID = uuid.NewString()
		}
		t.transactions = append(t.transactions, tx)
	}
}

// AddMembers appends member join records.
func (s *Store) AddMembers(tenantID string, members ...domain.MemberRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenant(tenantID)
	t.members = append(t.members, members...)
}

// PutStaff inserts or replaces a staff record.
func (s *Store) PutStaff(tenantID string, staff domain.StaffRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staff.LeaveDates = append([]time.Time(nil), staff.LeaveDates...)
	s.tenant(tenantID).staff[staff.ID] = staff
}

// PutPlan inserts or replaces a plan definition.
func (s *Store) PutPlan(tenantID string, plan domain.PlanSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tenant(tenantID)
	if t.plans[plan.Table] == nil {
		t.plans[plan.Table] = make(map[string]domain.PlanSnapshot)
	}
	t.plans[plan.Table][plan.ID] = plan
}

// DeletePlan removes a plan; payments referencing it stay in the ledger.
func (s *Store) DeletePlan(tenantID string, table domain.PlanTable, planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenant(tenantID).plans[table], planID)
}

// PaymentsBetween implements domain.LedgerStore.
func (s *Store) PaymentsBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.PaymentRecord, 0, len(t.payments))
	for _, p := range t.payments {
		if inHalfOpen(p.PaidAt, start, end) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

// CompensationBetween implements domain.LedgerStore.
func (s *Store) CompensationBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.CompensationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.CompensationRecord, 0, len(t.compensation))
	for _, c := range t.compensation {
		if inHalfOpen(c.PaidAt, start, end) {
			out = append(out, c)
		}
	}
	return out, nil
}

// TransactionsBetween implements domain.LedgerStore.
func (s *Store) TransactionsBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.LedgerTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.LedgerTransaction, 0, len(t.transactions))
	for _, tx := range t.transactions {
		if inHalfOpen(tx.Date, start, end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// MembersJoinedBetween implements domain.MemberDirectory.
func (s *Store) MembersJoinedBetween(ctx context.Context, tenantID string, start, end time.Time) ([]domain.MemberRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	var out []domain.MemberRecord
	for _, m := range t.members {
		if !m.JoinedAt.Before(start) && !m.JoinedAt.After(end) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListStaff implements domain.StaffDirectory, ordered by ID.
func (s *Store) ListStaff(ctx context.Context, tenantID string) ([]domain.StaffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.StaffRecord, 0, len(t.staff))
	for _, st := range t.staff {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetStaff implements domain.StaffDirectory.
func (s *Store) GetStaff(ctx context.Context, tenantID, staffID string) (*domain.StaffRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, domain.ErrStaffNotFound
	}
	st, ok := t.staff[staffID]
	if !ok {
		return nil, domain.ErrStaffNotFound
	}
	return &st, nil
}

// PlansByID implements domain.PlanStore. Deleted or unknown IDs are omitted.
func (s *Store) PlansByID(ctx context.Context, tenantID string, table domain.PlanTable, ids []string) (map[string]domain.PlanSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.PlanSnapshot, len(ids))
	t, ok := s.tenants[tenantID]
	if !ok {
		return out, nil
	}
	for _, id := range ids {
		if plan, ok := t.plans[table][id]; ok {
			out[id] = plan
		}
	}
	return out, nil
}

func inHalfOpen(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}
