package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/payoff-engine/engine"
)

func TestWaterfall_PenaltyThenInterestThenPrincipal(t *testing.T) {
	// GIVEN: Dues of 50 penalty, 30 interest, 1000 principal
	// WHEN: Paying 60
	res := engine.ApplyPaymentWaterfall(dec("60"), dec("50"), dec("30"), dec("1000"))

	// THEN: Penalty is cleared, interest gets the rest, principal is untouched
	assertDecimal(t, "50", res.AppliedPenalty, "penalty")
	assertDecimal(t, "10", res.AppliedInterest, "interest")
	assertDecimal(t, "0", res.AppliedPrincipal, "principal")
	assertDecimal(t, "0", res.Leftover, "leftover")
}

func TestWaterfall_Overpayment(t *testing.T) {
	res := engine.ApplyPaymentWaterfall(dec("2000"), dec("50"), dec("30"), dec("1000"))

	assertDecimal(t, "1000", res.AppliedPrincipal, "principal")
	assertDecimal(t, "920", res.Leftover, "leftover")
	assertDecimal(t, "1080", res.Applied(), "applied")
}

func TestWaterfall_Conservation(t *testing.T) {
	amounts := []string{"-5", "0", "0.01", "25", "80", "79.99", "1080", "5000"}
	dues := [][3]string{
		{"0", "0", "0"},
		{"50", "30", "1000"},
		{"0", "12.34", "100"},
		{"-10", "5", "-1"},
	}

	for _, amount := range amounts {
		for _, d := range dues {
			res := engine.ApplyPaymentWaterfall(dec(amount), dec(d[0]), dec(d[1]), dec(d[2]))

			for name, v := range map[string]decimal.Decimal{
				"penalty":   res.AppliedPenalty,
				"interest":  res.AppliedInterest,
				"principal": res.AppliedPrincipal,
				"leftover":  res.Leftover,
			} {
				if v.IsNegative() {
					t.Errorf("amount=%s dues=%v: negative %s %s", amount, d, name, v)
				}
			}

			paid := nonNeg(amount)
			if !res.Applied().Add(res.Leftover).Equal(paid) {
				t.Errorf("amount=%s dues=%v: parts sum to %s", amount, d, res.Applied().Add(res.Leftover))
			}

			// Principal only moves once penalty and interest are fully paid
			if res.AppliedPrincipal.IsPositive() {
				penaltyDue, interestDue := nonNeg(d[0]), nonNeg(d[1])
				assert.True(t, res.AppliedPenalty.Equal(penaltyDue), "amount=%s dues=%v", amount, d)
				assert.True(t, res.AppliedInterest.Equal(interestDue), "amount=%s dues=%v", amount, d)
			}
		}
	}
}

func nonNeg(s string) decimal.Decimal {
	v := dec(s)
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
