package portfolio

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
)

// =============================================================================
// REPOSITORY - Persistence interface for the portfolio service
// =============================================================================

// Repository persists accounts, payments, savings and snapshots.
//
// Lookups return nil, nil when the row doesn't exist. Loans and cards are
// numbered independently: CreateAccount assigns the next ID within the
// record's kind.
type Repository interface {
	CreateAccount(ctx context.Context, rec AccountRecord) (AccountRecord, error)
	UpdateAccount(ctx context.Context, rec AccountRecord) error
	GetAccount(ctx context.Context, ref engine.AccountRef) (*AccountRecord, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]AccountRecord, error)

	// UpdateBalance sets the balance and last payment date after a payment.
	UpdateBalance(ctx context.Context, ref engine.AccountRef, balance decimal.Decimal, lastPayment engine.Date) error

	// AddPayment returns ErrDuplicatePayment if the idempotency key exists.
	AddPayment(ctx context.Context, p PaymentRecord) (PaymentRecord, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, error)

	AddSavings(ctx context.Context, s SavingsAccount) (SavingsAccount, error)
	ListSavings(ctx context.Context) ([]SavingsAccount, error)

	// AddSnapshot returns ErrDuplicateSnapshot if the date is taken.
	AddSnapshot(ctx context.Context, s Snapshot) error
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
