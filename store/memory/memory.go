// Package memory provides an in-memory portfolio.Repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/portfolio"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx

	accounts    map[engine.AccountRef]portfolio.AccountRecord
	nextID      map[engine.AccountKind]int64
	payments    []portfolio.PaymentRecord
	idempotency map[string]bool
	savings     []portfolio.SavingsAccount
	snapshots   map[string]portfolio.Snapshot // by date
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[engine.AccountRef]portfolio.AccountRecord),
		nextID:      make(map[engine.AccountKind]int64),
		idempotency: make(map[string]bool),
		snapshots:   make(map[string]portfolio.Snapshot),
	}
}

var _ portfolio.Repository = (*Memory)(nil)

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, rec portfolio.AccountRecord) (portfolio.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID[rec.Kind]++
	rec.ID = m.nextID[rec.Kind]
	m.accounts[rec.Ref()] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

func (m *Memory) UpdateAccount(_ context.Context, rec portfolio.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.accounts[rec.Ref()]
	if !ok {
		return portfolio.ErrAccountNotFound
	}
	rec.CreatedAt = existing.CreatedAt
	m.accounts[rec.Ref()] = cloneRecord(rec)
	return nil
}

func (m *Memory) GetAccount(_ context.Context, ref engine.AccountRef) (*portfolio.AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.accounts[ref]
	if !ok {
		return nil, nil
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *Memory) ListAccounts(_ context.Context, filter portfolio.AccountFilter) ([]portfolio.AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]portfolio.AccountRecord, 0, len(m.accounts))
	for _, rec := range m.accounts {
		if filter.Kind != nil && rec.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	// Loans first, then cards; by ID within a kind
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == engine.KindLoan
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateBalance(_ context.Context, ref engine.AccountRef, balance decimal.Decimal, lastPayment engine.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.accounts[ref]
	if !ok {
		return portfolio.ErrAccountNotFound
	}
	rec = cloneRecord(rec)
	rec.Balance = balance
	paid := lastPayment
	switch rec.Kind {
	case engine.KindLoan:
		rec.Loan.LastPaymentDate = &paid
	case engine.KindCreditCard:
		rec.Card.LastPaymentDate = &paid
	}
	m.accounts[ref] = rec
	return nil
}

// cloneRecord copies the variant terms so stored records never alias
// caller memory.
func cloneRecord(rec portfolio.AccountRecord) portfolio.AccountRecord {
	if rec.Loan != nil {
		loan := *rec.Loan
		if loan.LastPaymentDate != nil {
			d := *loan.LastPaymentDate
			loan.LastPaymentDate = &d
		}
		rec.Loan = &loan
	}
	if rec.Card != nil {
		card := *rec.Card
		if card.LastPaymentDate != nil {
			d := *card.LastPaymentDate
			card.LastPaymentDate = &d
		}
		rec.Card = &card
	}
	if rec.InstallmentAmount != nil {
		amt := *rec.InstallmentAmount
		rec.InstallmentAmount = &amt
	}
	return rec
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) AddPayment(_ context.Context, p portfolio.PaymentRecord) (portfolio.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IdempotencyKey != "" && m.idempotency[p.IdempotencyKey] {
		return portfolio.PaymentRecord{}, portfolio.ErrDuplicatePayment
	}
	p.ID = int64(len(m.payments) + 1)
	m.payments = append(m.payments, p)
	if p.IdempotencyKey != "" {
		m.idempotency[p.IdempotencyKey] = true
	}
	return p, nil
}

// ListPayments returns matching payments, newest payment date first.
func (m *Memory) ListPayments(_ context.Context, filter portfolio.PaymentFilter) ([]portfolio.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]portfolio.PaymentRecord, 0, len(m.payments))
	for _, p := range m.payments {
		if filter.Target != nil && p.Target != *filter.Target {
			continue
		}
		if filter.Kind != nil && p.Target.Kind != *filter.Kind {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// =============================================================================
// SAVINGS AND SNAPSHOTS
// =============================================================================

func (m *Memory) AddSavings(_ context.Context, s portfolio.SavingsAccount) (portfolio.SavingsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = int64(len(m.savings) + 1)
	m.savings = append(m.savings, s)
	return s, nil
}

func (m *Memory) ListSavings(_ context.Context) ([]portfolio.SavingsAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]portfolio.SavingsAccount, len(m.savings))
	copy(out, m.savings)
	return out, nil
}

func (m *Memory) AddSnapshot(_ context.Context, s portfolio.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := s.Date.String()
	if _, exists := m.snapshots[k]; exists {
		return portfolio.ErrDuplicateSnapshot
	}
	m.snapshots[k] = s
	return nil
}

// ListSnapshots returns snapshots oldest first.
func (m *Memory) ListSnapshots(_ context.Context) ([]portfolio.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]portfolio.Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	fresh := NewMemory()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = fresh.accounts
	m.nextID = fresh.nextID
	m.payments = nil
	m.idempotency = fresh.idempotency
	m.savings = nil
	m.snapshots = fresh.snapshots
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against the store and restores the prior state if fn
// fails. Transactions are serialized; reads from outside a transaction may
// observe its intermediate writes.
func (m *Memory) WithTx(ctx context.Context, fn func(portfolio.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	saved := m.checkpoint()
	if err := fn(m); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

type state struct {
	accounts    map[engine.AccountRef]portfolio.AccountRecord
	nextID      map[engine.AccountKind]int64
	payments    []portfolio.PaymentRecord
	idempotency map[string]bool
	savings     []portfolio.SavingsAccount
	snapshots   map[string]portfolio.Snapshot
}

func (m *Memory) checkpoint() state {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := state{
		accounts:    make(map[engine.AccountRef]portfolio.AccountRecord, len(m.accounts)),
		nextID:      make(map[engine.AccountKind]int64, len(m.nextID)),
		payments:    append([]portfolio.PaymentRecord(nil), m.payments...),
		idempotency: make(map[string]bool, len(m.idempotency)),
		savings:     append([]portfolio.SavingsAccount(nil), m.savings...),
		snapshots:   make(map[string]portfolio.Snapshot, len(m.snapshots)),
	}
	for k, v := range m.accounts {
		s.accounts[k] = cloneRecord(v)
	}
	for k, v := range m.nextID {
		s.nextID[k] = v
	}
	for k, v := range m.idempotency {
		s.idempotency[k] = v
	}
	for k, v := range m.snapshots {
		s.snapshots[k] = v
	}
	return s
}

func (m *Memory) restore(s state) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = s.accounts
	m.nextID = s.nextID
	m.payments = s.payments
	m.idempotency = s.idempotency
	m.savings = s.savings
	m.snapshots = s.snapshots
}
