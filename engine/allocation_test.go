package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payoff-engine/engine"
)

func loanRef(id int64) engine.AccountRef { return engine.AccountRef{Kind: engine.KindLoan, ID: id} }
func cardRef(id int64) engine.AccountRef { return engine.AccountRef{Kind: engine.KindCreditCard, ID: id} }

func sampleCandidates() []engine.Candidate {
	return []engine.Candidate{
		{Ref: loanRef(1), Balance: dec("5000"), AnnualRate: dec("0.07"), RiskScore: 30},
		{Ref: cardRef(1), Balance: dec("800"), AnnualRate: dec("0.22"), RiskScore: 55},
		{Ref: cardRef(2), Balance: dec("300"), AnnualRate: dec("0.19"), RiskScore: 70},
		{Ref: loanRef(2), Balance: dec("2000"), AnnualRate: dec("0.22"), RiskScore: 55},
	}
}

func refs(plan []engine.Allocation) []engine.AccountRef {
	out := make([]engine.AccountRef, len(plan))
	for i, a := range plan {
		out[i] = a.Ref
	}
	return out
}

func TestRecommend_StrategyOrdering(t *testing.T) {
	tests := []struct {
		strategy engine.Strategy
		want     []engine.AccountRef
	}{
		// score desc, ties on rate desc (card 1 and loan 2 tie on both: input order)
		{engine.StrategyRisk, []engine.AccountRef{cardRef(2), cardRef(1), loanRef(2), loanRef(1)}},
		// rate desc, ties on balance desc
		{engine.StrategyAvalanche, []engine.AccountRef{loanRef(2), cardRef(1), cardRef(2), loanRef(1)}},
		// balance asc
		{engine.StrategySnowball, []engine.AccountRef{cardRef(2), cardRef(1), loanRef(2), loanRef(1)}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			plan, err := engine.RecommendAllocations(dec("100000"), sampleCandidates(), tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, refs(plan))
			for _, a := range plan {
				assert.Equal(t, tt.strategy, a.Strategy)
			}
		})
	}
}

func TestRecommend_GreedyStopsWhenBudgetRunsOut(t *testing.T) {
	// GIVEN: A budget that covers the first target and part of the second
	plan, err := engine.RecommendAllocations(dec("1000"), sampleCandidates(), engine.StrategySnowball)
	require.NoError(t, err)

	// THEN: 300 to card 2, the remaining 700 to card 1, nothing else
	require.Len(t, plan, 2)
	assert.Equal(t, cardRef(2), plan[0].Ref)
	assertDecimal(t, "300", plan[0].Amount, "first allocation")
	assert.Equal(t, cardRef(1), plan[1].Ref)
	assertDecimal(t, "700", plan[1].Amount, "second allocation")
	assertDecimal(t, "1000", engine.PlanTotal(plan), "plan total")
}

func TestRecommend_BoundsHold(t *testing.T) {
	for _, strategy := range engine.Strategies {
		for _, budget := range []string{"0.01", "299.99", "1100", "8100", "50000"} {
			cands := sampleCandidates()
			plan, err := engine.RecommendAllocations(dec(budget), cands, strategy)
			require.NoError(t, err)

			if engine.PlanTotal(plan).GreaterThan(dec(budget)) {
				t.Errorf("%s/%s: plan total %s exceeds budget", strategy, budget, engine.PlanTotal(plan))
			}
			balances := map[engine.AccountRef]string{}
			for _, c := range cands {
				balances[c.Ref] = c.Balance.String()
			}
			for _, a := range plan {
				if a.Amount.GreaterThan(dec(balances[a.Ref])) {
					t.Errorf("%s/%s: %v gets %s over balance %s", strategy, budget, a.Ref, a.Amount, balances[a.Ref])
				}
				if !a.Amount.IsPositive() {
					t.Errorf("%s/%s: non-positive allocation %s", strategy, budget, a.Amount)
				}
			}
		}
	}
}

func TestRecommend_SkipsPaidOffAccounts(t *testing.T) {
	cands := []engine.Candidate{
		{Ref: loanRef(1), Balance: dec("0"), AnnualRate: dec("0.30"), RiskScore: 99},
		{Ref: loanRef(2), Balance: dec("-5"), AnnualRate: dec("0.30"), RiskScore: 99},
		{Ref: loanRef(3), Balance: dec("100"), AnnualRate: dec("0.01"), RiskScore: 1},
	}

	plan, err := engine.RecommendAllocations(dec("500"), cands, engine.StrategyRisk)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, loanRef(3), plan[0].Ref)
	assertDecimal(t, "100", plan[0].Amount, "allocation")
}

func TestRecommend_NonPositiveBudgetIsEmpty(t *testing.T) {
	for _, budget := range []string{"0", "-10"} {
		plan, err := engine.RecommendAllocations(dec(budget), sampleCandidates(), engine.StrategyAvalanche)
		require.NoError(t, err)
		assert.NotNil(t, plan)
		assert.Empty(t, plan)
	}
}

func TestRecommend_UnknownStrategy(t *testing.T) {
	_, err := engine.RecommendAllocations(dec("100"), sampleCandidates(), "highest_apr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidArgument))
}

func TestRecommend_DoesNotReorderCallerSlice(t *testing.T) {
	cands := sampleCandidates()
	var before []engine.AccountRef
	for _, c := range cands {
		before = append(before, c.Ref)
	}

	_, err := engine.RecommendAllocations(dec("100"), cands, engine.StrategySnowball)
	require.NoError(t, err)

	for i, c := range cands {
		assert.Equal(t, before[i], c.Ref)
	}
}

func TestRecommendWithReserve(t *testing.T) {
	// GIVEN: 1000 available with 400 held back as an emergency reserve
	plan, err := engine.RecommendWithReserve(dec("1000"), dec("400"), sampleCandidates(), engine.StrategySnowball)
	require.NoError(t, err)

	// THEN: Only 600 is distributed
	assertDecimal(t, "600", engine.PlanTotal(plan), "distributed")

	// Reserve above available leaves nothing
	plan, err = engine.RecommendWithReserve(dec("300"), dec("400"), sampleCandidates(), engine.StrategySnowball)
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range engine.Strategies {
		got, err := engine.ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := engine.ParseStrategy("")
	assert.True(t, engine.IsInvalidArgument(err))
}
