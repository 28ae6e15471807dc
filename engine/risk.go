package engine

import "strings"

// =============================================================================
// RISK SCORE - Bounded composite score per account
// =============================================================================

// RiskScore is a score in [0, 100] and a tag naming the factors that fired.
type RiskScore struct {
	Score  float64
	Reason string
}

// RiskInput carries the per-account facts the score depends on.
// ForeignCurrency is read for loans, Utilization for cards.
type RiskInput struct {
	Kind            AccountKind
	AnnualRate      float64
	OverdueDays     int
	HasPenaltyOrFee bool
	ForeignCurrency bool
	Utilization     float64
}

// riskWeights are the per-kind factor ceilings.
type riskWeights struct {
	maxRate        float64
	ratePoints     float64
	overdueCapDays float64
	overduePoints  float64
}

var (
	loanWeights = riskWeights{maxRate: 0.40, ratePoints: 40, overdueCapDays: 60, overduePoints: 25}
	cardWeights = riskWeights{maxRate: 0.35, ratePoints: 35, overdueCapDays: 45, overduePoints: 20}
)

const (
	penaltyPoints     = 15.0
	currencyPoints    = 5.0
	lateFeePoints     = 15.0
	utilizationPoints = 30.0
)

// ComputeRisk scores one account. Every factor is clamped on its own before
// summation, and the sum is clamped to [0, 100].
func ComputeRisk(in RiskInput) (RiskScore, error) {
	var (
		w       riskWeights
		score   float64
		reasons = []string{"interest+overdue"}
	)

	switch in.Kind {
	case KindLoan:
		w = loanWeights
	case KindCreditCard:
		w = cardWeights
	default:
		return RiskScore{}, &InvalidArgumentError{Field: "kind", Value: in.Kind, Reason: "must be loan or credit_card"}
	}

	score += rateFactor(in.AnnualRate, w)
	score += overdueFactor(in.OverdueDays, w)

	if in.Kind == KindLoan {
		if in.HasPenaltyOrFee {
			score += penaltyPoints
			reasons = append(reasons, "penalty")
		}
		if in.ForeignCurrency {
			score += currencyPoints
			reasons = append(reasons, "currency")
		}
	} else {
		util := clamp(in.Utilization, 0, 1)
		if util > 0 {
			score += util * utilizationPoints
			reasons = append(reasons, "utilization")
		}
		if in.HasPenaltyOrFee {
			score += lateFeePoints
			reasons = append(reasons, "late_fee")
		}
	}

	return RiskScore{
		Score:  clamp(score, 0, 100),
		Reason: strings.Join(reasons, ", "),
	}, nil
}

func rateFactor(rate float64, w riskWeights) float64 {
	return clamp(rate, 0, w.maxRate) / w.maxRate * w.ratePoints
}

func overdueFactor(days int, w riskWeights) float64 {
	return clamp(float64(days), 0, w.overdueCapDays) / w.overdueCapDays * w.overduePoints
}

// ScoreAccount builds a RiskInput from an account record and its accrual.
func ScoreAccount(a Account, accrual Accrual, reportingCurrency string) (RiskScore, error) {
	return ComputeRisk(RiskInput{
		Kind:            a.Kind,
		AnnualRate:      a.AnnualRate.InexactFloat64(),
		OverdueDays:     accrual.OverdueDays,
		HasPenaltyOrFee: accrual.Penalty.IsPositive(),
		ForeignCurrency: a.ForeignCurrency(reportingCurrency),
		Utilization:     a.Utilization(),
	})
}
