/*
accrual.go - Interest and penalty accrual

PURPOSE:
  Answers "how much has this account accrued since its last payment event,
  as of a given day?" Results are recomputed on every call and never
  stored by the engine.

FORMULAS (actual/365, simple interest):
  interest = balance * rate/365 * elapsedDays

  Loan penalty:
    penalty = balance * penaltyRate/365 * overdueDays
    Penalty accrues over the overdue window only, not the full elapsed
    window. It is a surcharge on lateness.

  Card late fee:
    lateFee = flat fee, charged in full once overdueDays > 0

SHORT CIRCUIT:
  Zero elapsed days or a non-positive balance yields zero interest and zero
  penalty, whatever the rates. Negative rates and fees are treated as 0.

SEE ALSO:
  - time.go: NextDueDate, DaysBetween
  - simulator.go: Applies the same formulas to simulated balances
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCRUAL RESULT
// =============================================================================

// Accrual is a point-in-time accrual figure. Penalty holds the loan penal
// interest or the card late fee, depending on the account kind.
type Accrual struct {
	Interest    decimal.Decimal
	Penalty     decimal.Decimal
	DaysAccrued int
	OverdueDays int
}

// Total is interest plus penalty.
func (a Accrual) Total() decimal.Decimal {
	return a.Interest.Add(a.Penalty)
}

// AccrualInput is the flat form of an accrual request.
// PenaltyRate is read for loans, LateFee for cards.
type AccrualInput struct {
	Kind        AccountKind
	Balance     decimal.Decimal
	AnnualRate  decimal.Decimal
	PenaltyRate decimal.Decimal
	LateFee     decimal.Decimal
	Anchor      Date
	AsOf        Date
	OverdueDays int
}

// =============================================================================
// OVERDUE DAYS
// =============================================================================

// ComputeOverdueDays returns whole days past the account's due date.
//
// Loans: the due date is the next installment day after the anchor (last
// payment or loan start). No due day configured means never overdue.
// Cards: the explicit statement due date.
func ComputeOverdueDays(a Account, asOf Date) (int, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	switch a.Kind {
	case KindLoan:
		return LoanOverdueDays(asOf, a.Loan.DueDay, a.Anchor())
	default:
		return CardOverdueDays(asOf, a.Card.DueDate), nil
	}
}

// LoanOverdueDays computes overdue days for an installment loan.
// dueDay == 0 means the loan has no installment schedule.
func LoanOverdueDays(asOf Date, dueDay int, anchor Date) (int, error) {
	if dueDay == 0 {
		return 0, nil
	}
	due, err := NextDueDate(anchor, dueDay)
	if err != nil {
		return 0, err
	}
	return DaysBetween(due, asOf), nil
}

// CardOverdueDays computes overdue days against an explicit due date.
func CardOverdueDays(asOf, dueDate Date) int {
	return DaysBetween(dueDate, asOf)
}

// =============================================================================
// ACCRUAL
// =============================================================================

// ComputeAccrual computes interest and penalty for one account.
func ComputeAccrual(in AccrualInput) (Accrual, error) {
	if _, err := ParseAccountKind(string(in.Kind)); err != nil {
		return Accrual{}, err
	}

	overdue := in.OverdueDays
	if overdue < 0 {
		overdue = 0
	}

	days := DaysBetween(in.Anchor, in.AsOf)
	if days == 0 || !in.Balance.IsPositive() {
		return Accrual{Interest: decimal.Zero, Penalty: decimal.Zero, OverdueDays: overdue}, nil
	}

	interest := dailyAmount(in.Balance, in.AnnualRate, days)

	penalty := decimal.Zero
	switch in.Kind {
	case KindLoan:
		penalty = dailyAmount(in.Balance, in.PenaltyRate, overdue)
	case KindCreditCard:
		if overdue > 0 {
			penalty = nonNegative(in.LateFee)
		}
	}

	return Accrual{
		Interest:    interest,
		Penalty:     penalty,
		DaysAccrued: days,
		OverdueDays: overdue,
	}, nil
}

// AccrueAccount computes overdue days and accrual for an account record as
// of the given day.
func AccrueAccount(a Account, asOf Date) (Accrual, error) {
	overdue, err := ComputeOverdueDays(a, asOf)
	if err != nil {
		return Accrual{}, err
	}

	in := AccrualInput{
		Kind:        a.Kind,
		Balance:     a.Balance,
		AnnualRate:  a.AnnualRate,
		Anchor:      a.Anchor(),
		AsOf:        asOf,
		OverdueDays: overdue,
	}
	if a.Kind == KindLoan {
		in.PenaltyRate = a.Loan.PenaltyRate
	} else {
		in.LateFee = a.Card.LateFee
	}
	return ComputeAccrual(in)
}
