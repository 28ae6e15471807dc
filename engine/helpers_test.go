package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func datePtr(year int, month time.Month, day int) *engine.Date {
	d := date(year, month, day)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: expected %s, got %s", msg, want, got)
	}
}

// approxEqual checks two decimals agree to 1e-9 (for sums of divided amounts).
func approxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(dec("0.000000001"))
}

func loan(id int64, balance, rate string) engine.Account {
	return engine.Account{
		ID:         id,
		Kind:       engine.KindLoan,
		Balance:    dec(balance),
		AnnualRate: dec(rate),
		Loan: &engine.LoanTerms{
			PenaltyRate: decimal.Zero,
			StartDate:   date(2025, time.January, 1),
			Currency:    "CAD",
		},
	}
}

func card(id int64, balance, rate, limit, fee string, due engine.Date) engine.Account {
	return engine.Account{
		ID:         id,
		Kind:       engine.KindCreditCard,
		Balance:    dec(balance),
		AnnualRate: dec(rate),
		Card: &engine.CardTerms{
			CreditLimit:   dec(limit),
			LateFee:       dec(fee),
			StatementDate: due.AddDays(-21),
			DueDate:       due,
		},
	}
}
