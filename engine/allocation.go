/*
allocation.go - Strategy-ranked distribution of a pooled payment

PURPOSE:
  Given one budget and many accounts, decide who gets paid and how much.
  The policy is greedy and deterministic: rank the accounts, then give each
  in turn as much as it owes until the budget runs out. It does not try to
  minimize total interest; the ranking is the whole explanation.

STRATEGIES:
  risk:      risk score desc, then annual rate desc
  avalanche: annual rate desc, then balance desc
  snowball:  balance asc, then annual rate asc

  Ties on both keys keep the caller's input order.

GUARANTEES:
  - Sum of amounts <= budget
  - Each amount <= that candidate's balance
  - Candidates with non-positive balance are never allocated

SEE ALSO:
  - risk.go: Produces the scores the risk strategy ranks on
  - simulator.go: Calls the recommender once per simulated month
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGY
// =============================================================================

type Strategy string

const (
	StrategyRisk      Strategy = "risk"
	StrategyAvalanche Strategy = "avalanche"
	StrategySnowball  Strategy = "snowball"
)

// Strategies lists every recognized strategy in display order.
var Strategies = []Strategy{StrategyRisk, StrategyAvalanche, StrategySnowball}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRisk, StrategyAvalanche, StrategySnowball:
		return Strategy(s), nil
	default:
		return "", &InvalidArgumentError{Field: "strategy", Value: s, Reason: "must be risk, avalanche or snowball"}
	}
}

// =============================================================================
// CANDIDATES AND PLANS
// =============================================================================

// Candidate is one account competing for the budget.
type Candidate struct {
	Ref        AccountRef
	Balance    decimal.Decimal
	AnnualRate decimal.Decimal
	RiskScore  float64
}

// Allocation is one line of a plan.
type Allocation struct {
	Ref      AccountRef
	Amount   decimal.Decimal
	Strategy Strategy
}

// PlanTotal sums the amounts of a plan.
func PlanTotal(plan []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range plan {
		total = total.Add(a.Amount)
	}
	return total
}

// =============================================================================
// RECOMMENDER
// =============================================================================

// RecommendAllocations distributes budget across candidates under strategy.
func RecommendAllocations(budget decimal.Decimal, candidates []Candidate, strategy Strategy) ([]Allocation, error) {
	return RecommendWithReserve(budget, decimal.Zero, candidates, strategy)
}

// RecommendWithReserve holds back reserve (an emergency-savings floor) from
// available before distributing the rest. A reserve larger than available
// leaves nothing to allocate.
func RecommendWithReserve(available, reserve decimal.Decimal, candidates []Candidate, strategy Strategy) ([]Allocation, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	budget := available.Sub(nonNegative(reserve))
	if !budget.IsPositive() {
		return []Allocation{}, nil
	}

	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Balance.IsPositive() {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, rankBy(strategy, ranked))

	plan := make([]Allocation, 0, len(ranked))
	for _, c := range ranked {
		if !budget.IsPositive() {
			break
		}
		amount := minDecimal(budget, c.Balance)
		budget = budget.Sub(amount)
		plan = append(plan, Allocation{Ref: c.Ref, Amount: amount, Strategy: strategy})
	}
	return plan, nil
}

// rankBy returns the "i sorts before j" function for a strategy.
func rankBy(strategy Strategy, cs []Candidate) func(i, j int) bool {
	switch strategy {
	case StrategyAvalanche:
		return func(i, j int) bool {
			if !cs[i].AnnualRate.Equal(cs[j].AnnualRate) {
				return cs[i].AnnualRate.GreaterThan(cs[j].AnnualRate)
			}
			return cs[i].Balance.GreaterThan(cs[j].Balance)
		}
	case StrategySnowball:
		return func(i, j int) bool {
			if !cs[i].Balance.Equal(cs[j].Balance) {
				return cs[i].Balance.LessThan(cs[j].Balance)
			}
			return cs[i].AnnualRate.LessThan(cs[j].AnnualRate)
		}
	default:
		return func(i, j int) bool {
			if cs[i].RiskScore != cs[j].RiskScore {
				return cs[i].RiskScore > cs[j].RiskScore
			}
			return cs[i].AnnualRate.GreaterThan(cs[j].AnnualRate)
		}
	}
}
