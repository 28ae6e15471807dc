/*
Package factory provides JSON to Go account conversion.

PURPOSE:
  Converts JSON account definitions into portfolio.AccountRecord values
  (engine.Account plus descriptive fields). The API accepts accounts in this
  shape and demo scenarios are written in it, so both go through one
  parser with one set of validation rules.

JSON SCHEMA:
  {
    "kind": "loan",
    "name": "Car loan",
    "institution": "Maple Credit Union",
    "balance": "12000.00",
    "currency": "USD",
    "annual_rate": "0.0649",
    "last_payment_date": "2025-01-15",
    "loan": {
      "penalty_rate": "0.02",
      "due_day": 15,
      "start_date": "2024-03-01",
      "currency": "USD",
      "debt_type": "auto",
      "principal_original": "18000",
      "installment_amount": "412.50"
    }
  }

  A card carries "card" instead of "loan":
    "card": {
      "credit_limit": "5000",
      "late_fee": "35",
      "statement_date": "2025-01-10",
      "due_date": "2025-01-31"
    }

  Amounts may be JSON strings or numbers; strings are preferred so no
  float ever touches a balance. Dates are YYYY-MM-DD.

KEY FEATURES:
  - Validates kind, dates, due day, negative amounts
  - Defaults status to active
  - Loan balance currency defaults to the loan's currency
  - ToJSON is the inverse, used for API responses

USAGE:
  f := factory.NewAccountFactory()
  acct, err := f.ParseAccount(jsonString)
  created, err := svc.CreateAccount(ctx, acct)

SEE ALSO:
  - engine/account.go: Account variant
  - portfolio/types.go: AccountRecord
  - api/scenarios.go: Demo portfolios written as AccountJSON
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/portfolio"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AccountJSON is the JSON representation of an account.
type AccountJSON struct {
	Kind            string          `json:"kind"`
	ID              int64           `json:"id,omitempty"`
	Name            string          `json:"name"`
	Institution     string          `json:"institution,omitempty"`
	Status          string          `json:"status,omitempty"`
	Balance         decimal.Decimal `json:"balance"`
	Currency        string          `json:"currency,omitempty"` // currency of Balance on input
	AnnualRate      decimal.Decimal `json:"annual_rate"`
	LastPaymentDate string          `json:"last_payment_date,omitempty"`
	Loan            *LoanJSON       `json:"loan,omitempty"`
	Card            *CardJSON       `json:"card,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
}

// LoanJSON holds loan-only fields.
type LoanJSON struct {
	PenaltyRate       decimal.Decimal  `json:"penalty_rate"`
	DueDay            int              `json:"due_day,omitempty"`
	StartDate         string           `json:"start_date"`
	Currency          string           `json:"currency,omitempty"`
	DebtType          string           `json:"debt_type,omitempty"`
	PrincipalOriginal *decimal.Decimal `json:"principal_original,omitempty"`
	InstallmentAmount *decimal.Decimal `json:"installment_amount,omitempty"`
}

// CardJSON holds card-only fields.
type CardJSON struct {
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	LateFee       decimal.Decimal `json:"late_fee"`
	StatementDate string          `json:"statement_date"`
	DueDate       string          `json:"due_date"`
}

// =============================================================================
// ACCOUNT FACTORY
// =============================================================================

// AccountFactory converts JSON accounts to Go structs.
type AccountFactory struct{}

// NewAccountFactory creates a new account factory.
func NewAccountFactory() *AccountFactory {
	return &AccountFactory{}
}

// ParseAccount parses a JSON string into an account ready for creation.
func (f *AccountFactory) ParseAccount(jsonStr string) (portfolio.NewAccount, error) {
	var aj AccountJSON
	if err := json.Unmarshal([]byte(jsonStr), &aj); err != nil {
		return portfolio.NewAccount{}, fmt.Errorf("failed to parse account JSON: %w", err)
	}
	return f.FromJSON(aj)
}

// ParseAccounts parses a JSON array of accounts.
func (f *AccountFactory) ParseAccounts(jsonStr string) ([]portfolio.NewAccount, error) {
	var ajs []AccountJSON
	if err := json.Unmarshal([]byte(jsonStr), &ajs); err != nil {
		return nil, fmt.Errorf("failed to parse accounts JSON: %w", err)
	}
	out := make([]portfolio.NewAccount, 0, len(ajs))
	for i, aj := range ajs {
		acct, err := f.FromJSON(aj)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		out = append(out, acct)
	}
	return out, nil
}

// FromJSON converts AccountJSON to a validated portfolio.NewAccount.
func (f *AccountFactory) FromJSON(aj AccountJSON) (portfolio.NewAccount, error) {
	kind, err := engine.ParseAccountKind(aj.Kind)
	if err != nil {
		return portfolio.NewAccount{}, err
	}
	status, err := parseStatus(aj.Status)
	if err != nil {
		return portfolio.NewAccount{}, err
	}
	if aj.AnnualRate.IsNegative() {
		return portfolio.NewAccount{}, invalid("annual_rate", aj.AnnualRate, "must not be negative")
	}
	lastPayment, err := parseOptionalDate("last_payment_date", aj.LastPaymentDate)
	if err != nil {
		return portfolio.NewAccount{}, err
	}

	rec := portfolio.AccountRecord{
		Account: engine.Account{
			ID:         aj.ID,
			Kind:       kind,
			Balance:    aj.Balance,
			AnnualRate: aj.AnnualRate,
		},
		Name:        aj.Name,
		Institution: aj.Institution,
		Status:      status,
	}

	switch kind {
	case engine.KindLoan:
		if aj.Loan == nil || aj.Card != nil {
			return portfolio.NewAccount{}, invalid("loan", nil, "loan accounts need a loan block and no card block")
		}
		loan, err := parseLoan(*aj.Loan)
		if err != nil {
			return portfolio.NewAccount{}, err
		}
		loan.LastPaymentDate = lastPayment
		rec.Loan = loan
		rec.DebtType = aj.Loan.DebtType
		if aj.Loan.PrincipalOriginal != nil {
			rec.PrincipalOriginal = *aj.Loan.PrincipalOriginal
		} else {
			rec.PrincipalOriginal = aj.Balance
		}
		rec.InstallmentAmount = aj.Loan.InstallmentAmount

	case engine.KindCreditCard:
		if aj.Card == nil || aj.Loan != nil {
			return portfolio.NewAccount{}, invalid("card", nil, "credit card accounts need a card block and no loan block")
		}
		card, err := parseCard(*aj.Card)
		if err != nil {
			return portfolio.NewAccount{}, err
		}
		card.LastPaymentDate = lastPayment
		rec.Card = card
	}

	if err := rec.Validate(); err != nil {
		return portfolio.NewAccount{}, err
	}
	return portfolio.NewAccount{Record: rec, Currency: aj.Currency}, nil
}

// ToJSON converts a stored account to AccountJSON. Balance is in the
// reporting currency, which is what Currency reports.
func (f *AccountFactory) ToJSON(rec portfolio.AccountRecord, reporting string) AccountJSON {
	aj := AccountJSON{
		Kind:        string(rec.Kind),
		ID:          rec.ID,
		Name:        rec.Name,
		Institution: rec.Institution,
		Status:      string(rec.Status),
		Balance:     rec.Balance,
		Currency:    reporting,
		AnnualRate:  rec.AnnualRate,
	}
	if !rec.CreatedAt.IsZero() {
		aj.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}

	switch {
	case rec.Loan != nil:
		principal := rec.PrincipalOriginal
		aj.Loan = &LoanJSON{
			PenaltyRate:       rec.Loan.PenaltyRate,
			DueDay:            rec.Loan.DueDay,
			StartDate:         rec.Loan.StartDate.String(),
			Currency:          rec.Loan.Currency,
			DebtType:          rec.DebtType,
			PrincipalOriginal: &principal,
			InstallmentAmount: rec.InstallmentAmount,
		}
		if rec.Loan.LastPaymentDate != nil {
			aj.LastPaymentDate = rec.Loan.LastPaymentDate.String()
		}
	case rec.Card != nil:
		aj.Card = &CardJSON{
			CreditLimit:   rec.Card.CreditLimit,
			LateFee:       rec.Card.LateFee,
			StatementDate: rec.Card.StatementDate.String(),
			DueDate:       rec.Card.DueDate.String(),
		}
		if rec.Card.LastPaymentDate != nil {
			aj.LastPaymentDate = rec.Card.LastPaymentDate.String()
		}
	}
	return aj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseLoan(lj LoanJSON) (*engine.LoanTerms, error) {
	if lj.PenaltyRate.IsNegative() {
		return nil, invalid("penalty_rate", lj.PenaltyRate, "must not be negative")
	}
	if lj.DueDay != 0 {
		if err := engine.ValidateDueDay(lj.DueDay); err != nil {
			return nil, err
		}
	}
	start, err := parseDate("start_date", lj.StartDate)
	if err != nil {
		return nil, err
	}
	if lj.InstallmentAmount != nil && lj.InstallmentAmount.IsNegative() {
		return nil, invalid("installment_amount", *lj.InstallmentAmount, "must not be negative")
	}
	return &engine.LoanTerms{
		PenaltyRate: lj.PenaltyRate,
		DueDay:      lj.DueDay,
		StartDate:   start,
		Currency:    lj.Currency,
	}, nil
}

func parseCard(cj CardJSON) (*engine.CardTerms, error) {
	if cj.CreditLimit.IsNegative() {
		return nil, invalid("credit_limit", cj.CreditLimit, "must not be negative")
	}
	if cj.LateFee.IsNegative() {
		return nil, invalid("late_fee", cj.LateFee, "must not be negative")
	}
	statement, err := parseDate("statement_date", cj.StatementDate)
	if err != nil {
		return nil, err
	}
	due, err := parseDate("due_date", cj.DueDate)
	if err != nil {
		return nil, err
	}
	return &engine.CardTerms{
		CreditLimit:   cj.CreditLimit,
		LateFee:       cj.LateFee,
		StatementDate: statement,
		DueDate:       due,
	}, nil
}

func parseStatus(s string) (portfolio.AccountStatus, error) {
	switch portfolio.AccountStatus(s) {
	case "":
		return portfolio.StatusActive, nil
	case portfolio.StatusActive, portfolio.StatusClosed:
		return portfolio.AccountStatus(s), nil
	default:
		return "", invalid("status", s, "must be active or closed")
	}
}

func parseDate(field, s string) (engine.Date, error) {
	if s == "" {
		return engine.Date{}, invalid(field, s, "required (YYYY-MM-DD)")
	}
	d, err := engine.ParseDate(s)
	if err != nil {
		return engine.Date{}, invalid(field, s, "use YYYY-MM-DD")
	}
	return d, nil
}

func parseOptionalDate(field, s string) (*engine.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func invalid(field string, value any, reason string) error {
	return &engine.InvalidArgumentError{Field: field, Value: value, Reason: reason}
}
