/*
Package engine provides the debt payoff computation core.

PURPOSE:
  This package holds the pure financial math: day-accurate interest and
  penalty accrual, per-account risk scoring, the penalty -> interest ->
  principal payment waterfall, strategy-ranked allocation of a pooled
  payment, and the month-by-month payoff simulator that composes them.

KEY CONCEPTS IN THIS FILE (account.go):
  - Account: A loan or credit card, modeled as a tagged variant
  - AccountRef: The (kind, id) identity used in plans and simulations
  - Money helpers: decimal arithmetic shared by every component

DESIGN PRINCIPLES:
  1. Purity: No I/O, no clock reads, no package-level mutable state
  2. Precision: Money is decimal.Decimal, never float64
  3. One reporting unit: Amounts arrive already converted by the caller
  4. Explicit variants: Accrual and risk branch on Kind, never on duck typing

USAGE:
  loan := engine.Account{
      ID:         1,
      Kind:       engine.KindLoan,
      Balance:    decimal.NewFromInt(1200),
      AnnualRate: decimal.RequireFromString("0.18"),
      Loan: &engine.LoanTerms{
          DueDay:    15,
          StartDate: engine.NewDate(2025, time.January, 1),
      },
  }
  accrual, err := engine.AccrueAccount(loan, engine.NewDate(2025, time.March, 1))

SEE ALSO:
  - accrual.go: Interest and penalty accrual
  - simulator.go: Monthly payoff projection
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT KIND - Discriminator for the Loan/CreditCard variant
// =============================================================================

type AccountKind string

const (
	KindLoan       AccountKind = "loan"
	KindCreditCard AccountKind = "credit_card"
)

// ParseAccountKind validates a kind tag.
func ParseAccountKind(s string) (AccountKind, error) {
	switch AccountKind(s) {
	case KindLoan, KindCreditCard:
		return AccountKind(s), nil
	default:
		return "", &InvalidArgumentError{Field: "kind", Value: s, Reason: "must be loan or credit_card"}
	}
}

// AccountRef identifies an account across both variants. Loans and cards
// are numbered independently, so the kind is part of the identity.
type AccountRef struct {
	Kind AccountKind
	ID   int64
}

// =============================================================================
// ACCOUNT - Tagged variant
// =============================================================================

// Account is a debt obligation in the reporting currency.
// Exactly one of Loan or Card is set, matching Kind.
type Account struct {
	ID         int64
	Kind       AccountKind
	Balance    decimal.Decimal // outstanding principal / statement balance, >= 0
	AnnualRate decimal.Decimal // fraction, e.g. 0.18

	Loan *LoanTerms
	Card *CardTerms
}

// LoanTerms are the loan-only fields.
type LoanTerms struct {
	PenaltyRate     decimal.Decimal // annual penal rate, fraction
	DueDay          int             // 0 = no installment due day
	StartDate       Date
	LastPaymentDate *Date
	Currency        string // original currency of the loan
}

// CardTerms are the card-only fields.
type CardTerms struct {
	CreditLimit     decimal.Decimal
	LateFee         decimal.Decimal // flat, charged once when overdue
	StatementDate   Date
	DueDate         Date
	LastPaymentDate *Date
}

// Ref returns the account's identity.
func (a Account) Ref() AccountRef {
	return AccountRef{Kind: a.Kind, ID: a.ID}
}

// Validate checks the structural invariants of the variant.
func (a Account) Validate() error {
	switch a.Kind {
	case KindLoan:
		if a.Loan == nil || a.Card != nil {
			return &InvalidArgumentError{Field: "account", Value: a.ID, Reason: "loan must carry loan terms only"}
		}
		if a.Loan.DueDay != 0 {
			if err := ValidateDueDay(a.Loan.DueDay); err != nil {
				return err
			}
		}
	case KindCreditCard:
		if a.Card == nil || a.Loan != nil {
			return &InvalidArgumentError{Field: "account", Value: a.ID, Reason: "credit card must carry card terms only"}
		}
	default:
		return &InvalidArgumentError{Field: "kind", Value: a.Kind, Reason: "must be loan or credit_card"}
	}
	if a.Balance.IsNegative() {
		return &InvalidArgumentError{Field: "balance", Value: a.Balance, Reason: "must not be negative"}
	}
	return nil
}

// Anchor is the date accrual runs from: the last payment, or failing that
// the loan start / statement date.
func (a Account) Anchor() Date {
	switch a.Kind {
	case KindLoan:
		if a.Loan.LastPaymentDate != nil {
			return *a.Loan.LastPaymentDate
		}
		return a.Loan.StartDate
	default:
		if a.Card.LastPaymentDate != nil {
			return *a.Card.LastPaymentDate
		}
		return a.Card.StatementDate
	}
}

// Utilization is balance / credit limit in [0, 1]. Loans and cards with no
// positive limit report 0.
func (a Account) Utilization() float64 {
	if a.Kind != KindCreditCard || a.Card == nil {
		return 0
	}
	return utilization(a.Balance, a.Card.CreditLimit)
}

// ForeignCurrency reports whether a loan was originated outside the
// reporting currency. Cards are always held in the reporting currency.
func (a Account) ForeignCurrency(reporting string) bool {
	if a.Kind != KindLoan || a.Loan == nil || a.Loan.Currency == "" || reporting == "" {
		return false
	}
	return !sameCurrency(a.Loan.Currency, reporting)
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

var daysPerYear = decimal.NewFromInt(365)

// nonNegative clamps a negative amount to zero.
func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// dailyAmount computes base * annualRate/365 * days, rate clamped at 0.
func dailyAmount(base, annualRate decimal.Decimal, days int) decimal.Decimal {
	return base.Mul(nonNegative(annualRate)).Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
}

func utilization(balance, limit decimal.Decimal) float64 {
	if !limit.IsPositive() {
		return 0
	}
	return clamp(balance.Div(limit).InexactFloat64(), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sameCurrency(a, b string) bool {
	return strings.EqualFold(a, b)
}
