package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payoff-engine/engine"
)

func TestRisk_LoanFactors(t *testing.T) {
	tests := []struct {
		name       string
		in         engine.RiskInput
		wantScore  float64
		wantReason string
	}{
		{
			name:       "rate only",
			in:         engine.RiskInput{Kind: engine.KindLoan, AnnualRate: 0.20},
			wantScore:  20,
			wantReason: "interest+overdue",
		},
		{
			name:       "half overdue cap",
			in:         engine.RiskInput{Kind: engine.KindLoan, AnnualRate: 0.20, OverdueDays: 30},
			wantScore:  32.5,
			wantReason: "interest+overdue",
		},
		{
			name:       "penalty and currency",
			in:         engine.RiskInput{Kind: engine.KindLoan, AnnualRate: 0.20, OverdueDays: 30, HasPenaltyOrFee: true, ForeignCurrency: true},
			wantScore:  52.5,
			wantReason: "interest+overdue, penalty, currency",
		},
		{
			name:       "all factors saturated",
			in:         engine.RiskInput{Kind: engine.KindLoan, AnnualRate: 0.90, OverdueDays: 400, HasPenaltyOrFee: true, ForeignCurrency: true},
			wantScore:  85,
			wantReason: "interest+overdue, penalty, currency",
		},
		{
			name:       "utilization ignored for loans",
			in:         engine.RiskInput{Kind: engine.KindLoan, Utilization: 1},
			wantScore:  0,
			wantReason: "interest+overdue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ComputeRisk(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestRisk_CardFactors(t *testing.T) {
	tests := []struct {
		name       string
		in         engine.RiskInput
		wantScore  float64
		wantReason string
	}{
		{
			name:       "rate at cap",
			in:         engine.RiskInput{Kind: engine.KindCreditCard, AnnualRate: 0.35},
			wantScore:  35,
			wantReason: "interest+overdue",
		},
		{
			name:       "half utilization",
			in:         engine.RiskInput{Kind: engine.KindCreditCard, Utilization: 0.5},
			wantScore:  15,
			wantReason: "interest+overdue, utilization",
		},
		{
			name:       "late fee",
			in:         engine.RiskInput{Kind: engine.KindCreditCard, OverdueDays: 9, HasPenaltyOrFee: true},
			wantScore:  19,
			wantReason: "interest+overdue, late_fee",
		},
		{
			name:       "everything maxed clamps to 100",
			in:         engine.RiskInput{Kind: engine.KindCreditCard, AnnualRate: 0.5, OverdueDays: 100, HasPenaltyOrFee: true, Utilization: 3},
			wantScore:  100,
			wantReason: "interest+overdue, utilization, late_fee",
		},
		{
			name:       "currency ignored for cards",
			in:         engine.RiskInput{Kind: engine.KindCreditCard, ForeignCurrency: true},
			wantScore:  0,
			wantReason: "interest+overdue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ComputeRisk(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestRisk_BoundedAndMonotonic(t *testing.T) {
	for _, kind := range []engine.AccountKind{engine.KindLoan, engine.KindCreditCard} {
		prev := -1.0
		for days := -5; days <= 120; days++ {
			got, err := engine.ComputeRisk(engine.RiskInput{Kind: kind, AnnualRate: 0.18, OverdueDays: days, Utilization: 0.4})
			require.NoError(t, err)
			if got.Score < 0 || got.Score > 100 {
				t.Fatalf("%s: score %v out of range at %d days", kind, got.Score, days)
			}
			if got.Score < prev {
				t.Fatalf("%s: score decreased from %v to %v at %d days", kind, prev, got.Score, days)
			}
			prev = got.Score
		}

		prev = -1.0
		for rate := -0.1; rate <= 0.8; rate += 0.01 {
			got, err := engine.ComputeRisk(engine.RiskInput{Kind: kind, AnnualRate: rate, OverdueDays: 10})
			require.NoError(t, err)
			if got.Score < prev {
				t.Fatalf("%s: score decreased from %v to %v at rate %v", kind, prev, got.Score, rate)
			}
			prev = got.Score
		}
	}
}

func TestRisk_RejectsUnknownKind(t *testing.T) {
	_, err := engine.ComputeRisk(engine.RiskInput{Kind: "lease"})
	assert.True(t, engine.IsInvalidArgument(err))
}

func TestScoreAccount_UsesAccountFacts(t *testing.T) {
	// GIVEN: A USD loan with penalty accrued, reported in CAD
	l := loan(3, "1000", "0.40")
	l.Loan.Currency = "usd"
	acc := engine.Accrual{Penalty: dec("1.5"), OverdueDays: 60}

	// WHEN: Scoring
	got, err := engine.ScoreAccount(l, acc, "CAD")
	require.NoError(t, err)

	// THEN: Every loan factor fires
	assert.InDelta(t, 85, got.Score, 1e-9)
	assert.Equal(t, "interest+overdue, penalty, currency", got.Reason)

	// Same currency (case-insensitive) drops the currency factor
	got, err = engine.ScoreAccount(l, acc, "USD")
	require.NoError(t, err)
	assert.InDelta(t, 80, got.Score, 1e-9)
}

func TestScoreAccount_CardUtilization(t *testing.T) {
	c := card(2, "750", "0", "1000", "25", date(2025, time.June, 1))

	got, err := engine.ScoreAccount(c, engine.Accrual{}, "CAD")
	require.NoError(t, err)
	assert.InDelta(t, 22.5, got.Score, 1e-9)
	assert.Equal(t, "interest+overdue, utilization", got.Reason)
}
