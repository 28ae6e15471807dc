package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountStatus string

const (
	StatusActive AccountStatus = "active"
	StatusClosed AccountStatus = "closed"
)

// AccountRecord is a stored account: the engine view plus the descriptive
// fields people recognize it by. Balances are in the reporting currency.
type AccountRecord struct {
	engine.Account

	Name        string        // card name, or loan label
	Institution string        // lender or issuing bank
	Status      AccountStatus // active accounts are the only ones scored

	// Loan-only descriptive fields
	DebtType          string           // "personal", "mortgage", "auto", "other"
	PrincipalOriginal decimal.Decimal  // sanctioned amount, in Loan.Currency
	InstallmentAmount *decimal.Decimal // nil = no fixed installment

	CreatedAt time.Time
}

func (r AccountRecord) IsActive() bool { return r.Status == StatusActive }

// AccountFilter narrows ListAccounts. Zero value lists everything.
type AccountFilter struct {
	Kind   *engine.AccountKind
	Status *AccountStatus
}

// ActiveOnly is the filter used by every scoring path.
func ActiveOnly() AccountFilter {
	s := StatusActive
	return AccountFilter{Status: &s}
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentRequest is one payment into one account.
type PaymentRequest struct {
	Target         engine.AccountRef
	Date           engine.Date
	Amount         decimal.Decimal // in Currency
	Currency       string          // empty = reporting currency
	IdempotencyKey string          // empty = generated
}

// PaymentRecord is an applied payment. Amount is what was paid in Currency;
// AmountReporting is the same payment converted and split by the waterfall.
type PaymentRecord struct {
	ID               int64
	IdempotencyKey   string
	Target           engine.AccountRef
	Date             engine.Date
	Amount           decimal.Decimal
	Currency         string
	AmountReporting  decimal.Decimal
	AppliedPenalty   decimal.Decimal
	AppliedInterest  decimal.Decimal
	AppliedPrincipal decimal.Decimal
	Leftover         decimal.Decimal
	BalanceAfter     decimal.Decimal
	CreatedAt        time.Time
}

// PaymentFilter narrows ListPayments.
type PaymentFilter struct {
	Target *engine.AccountRef
	Kind   *engine.AccountKind
}

// =============================================================================
// SAVINGS AND SNAPSHOTS
// =============================================================================

// SavingsAccount is a cash buffer counted toward net position.
type SavingsAccount struct {
	ID               int64
	Name             string
	Currency         string
	BalanceReporting decimal.Decimal
}

// Snapshot is a dated record of the portfolio totals.
type Snapshot struct {
	ID            string
	Date          engine.Date
	TotalDebt     decimal.Decimal // balances + accrued
	TotalInterest decimal.Decimal // accrued interest + penalty/fees
	TotalSavings  decimal.Decimal
	NetPosition   decimal.Decimal // savings - debt
	CreatedAt     time.Time
}

// =============================================================================
// POSITIONS (computed, never stored)
// =============================================================================

// Position is one active account scored as of a day.
type Position struct {
	Account AccountRecord
	Accrual engine.Accrual
	Risk    engine.RiskScore
}

// TotalOwed is balance plus accrued interest and penalty.
func (p Position) TotalOwed() decimal.Decimal {
	return p.Account.Balance.Add(p.Accrual.Total())
}

// Overview is the dashboard: every active position plus the totals.
type Overview struct {
	AsOf          engine.Date
	Positions     []Position
	TotalDebt     decimal.Decimal
	TotalInterest decimal.Decimal
	TotalSavings  decimal.Decimal
	NetPosition   decimal.Decimal
	HighestRisk   *Position
}
