package engine

import "github.com/shopspring/decimal"

// =============================================================================
// PAYMENT WATERFALL - penalty -> interest -> principal
// =============================================================================

// PaymentResult is the split of one payment across the three buckets.
// AppliedPenalty + AppliedInterest + AppliedPrincipal + Leftover equals the
// (non-negative) payment amount.
type PaymentResult struct {
	AppliedPenalty   decimal.Decimal
	AppliedInterest  decimal.Decimal
	AppliedPrincipal decimal.Decimal
	Leftover         decimal.Decimal
}

// Applied is the total consumed by the three buckets.
func (r PaymentResult) Applied() decimal.Decimal {
	return r.AppliedPenalty.Add(r.AppliedInterest).Add(r.AppliedPrincipal)
}

// ApplyPaymentWaterfall settles penalty first, then interest, then
// principal. Principal never moves while penalty or interest is owed.
// Negative dues and a negative amount are treated as zero.
func ApplyPaymentWaterfall(amount, penaltyDue, interestDue, principalDue decimal.Decimal) PaymentResult {
	remaining := nonNegative(amount)

	penalty := minDecimal(remaining, nonNegative(penaltyDue))
	remaining = remaining.Sub(penalty)

	interest := minDecimal(remaining, nonNegative(interestDue))
	remaining = remaining.Sub(interest)

	principal := minDecimal(remaining, nonNegative(principalDue))
	remaining = remaining.Sub(principal)

	return PaymentResult{
		AppliedPenalty:   penalty,
		AppliedInterest:  interest,
		AppliedPrincipal: principal,
		Leftover:         remaining,
	}
}
