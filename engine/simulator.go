/*
simulator.go - Month-by-month payoff projection

PURPOSE:
  Projects how a portfolio of loans and cards evolves when the same payment
  is made every month under a fixed strategy. Answers "when am I debt-free,
  and how much interest do I pay on the way?"

STATE MACHINE:
  One state (simulating), iterated once per calendar month. Two exits:
    - Paid off: at the start of a month, after accrual, the total owed is
      <= 0. The month's first day is the payoff date.
    - Unresolved: the horizon (default 600 months) is exhausted. The payoff
      date is nil and the timeline built so far is returned.

PER MONTH [periodStart, periodEnd):
  1. Accrue interest/penalty on each simulated balance; record overdue days
  2. Stop if nothing is owed
  3. If the payment is positive: score every account still owing, rank and
     allocate with the configured strategy
  4. Run each allocation through the waterfall; mutate simulated state
  5. Record (periodEnd - 1 day, total owed, cumulative interest paid)

OVERDUE IN THE PROJECTION:
  Payments land at month end. An account with a due day in [1, 28] is
  therefore always past due when the month closes, and penalty or late fee
  accrues every month it carries a balance. Projections are pessimistic.

OWNERSHIP:
  The simulator copies the caller's Account records into private state at
  the start of the run. Caller data is never mutated, and nothing outlives
  the call. Runs are deterministic: identical inputs produce identical
  timelines.

SEE ALSO:
  - accrual.go: The accrual formulas used in step 1
  - allocation.go: The recommender used in step 3
  - waterfall.go: The waterfall used in step 4
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// DefaultHorizonMonths bounds every simulation.
const DefaultHorizonMonths = 600

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// SimulationInput configures one payoff projection.
type SimulationInput struct {
	Accounts       []Account
	Start          Date
	MonthlyPayment decimal.Decimal
	Strategy       Strategy

	// HorizonMonths caps the run; 0 means DefaultHorizonMonths.
	HorizonMonths int

	// ReportingCurrency feeds the loan currency risk factor.
	ReportingCurrency string
}

// TimelineSample is the state at the close of one simulated month.
type TimelineSample struct {
	AsOf              Date
	TotalRemaining    decimal.Decimal
	TotalInterestPaid decimal.Decimal
}

// SimulationResult is the outcome of a projection. PayoffDate is nil when
// the portfolio was not paid off within the horizon.
type SimulationResult struct {
	Strategy          Strategy
	PayoffDate        *Date
	TotalInterestPaid decimal.Decimal
	Months            int
	Timeline          []TimelineSample
}

// Resolved reports whether the projection reached a zero balance.
func (r SimulationResult) Resolved() bool {
	return r.PayoffDate != nil
}

// =============================================================================
// SIMULATION STATE (private to one run)
// =============================================================================

type accountState struct {
	ref         AccountRef
	balance     decimal.Decimal
	rate        decimal.Decimal
	penaltyRate decimal.Decimal // loans
	lateFee     decimal.Decimal // cards
	creditLimit decimal.Decimal // cards
	dueDay      int             // 0 = no due day
	foreign     bool

	unpaidInterest decimal.Decimal
	unpaidPenalty  decimal.Decimal
}

func (s *accountState) owed() decimal.Decimal {
	return s.balance.Add(s.unpaidInterest).Add(s.unpaidPenalty)
}

func newAccountState(a Account, reporting string) *accountState {
	s := &accountState{
		ref:            a.Ref(),
		balance:        nonNegative(a.Balance),
		rate:           a.AnnualRate,
		foreign:        a.ForeignCurrency(reporting),
		unpaidInterest: decimal.Zero,
		unpaidPenalty:  decimal.Zero,
	}
	switch a.Kind {
	case KindLoan:
		s.penaltyRate = a.Loan.PenaltyRate
		s.dueDay = a.Loan.DueDay
	case KindCreditCard:
		s.lateFee = a.Card.LateFee
		s.creditLimit = a.Card.CreditLimit
		s.dueDay = clampDueDay(a.Card.DueDate.Day())
	}
	return s
}

// accrueMonth adds one period of interest and penalty to the state and
// returns the period's overdue days.
func (s *accountState) accrueMonth(periodStart, periodEnd Date) int {
	if !s.balance.IsPositive() {
		return 0
	}

	overdue := 0
	if s.dueDay != 0 {
		due := periodStart.WithDay(s.dueDay)
		overdue = DaysBetween(due, periodEnd)
	}

	// Kind is valid by construction, so ComputeAccrual cannot fail here.
	accrual, _ := ComputeAccrual(AccrualInput{
		Kind:        s.ref.Kind,
		Balance:     s.balance,
		AnnualRate:  s.rate,
		PenaltyRate: s.penaltyRate,
		LateFee:     s.lateFee,
		Anchor:      periodStart,
		AsOf:        periodEnd,
		OverdueDays: overdue,
	})
	s.unpaidInterest = s.unpaidInterest.Add(accrual.Interest)
	s.unpaidPenalty = s.unpaidPenalty.Add(accrual.Penalty)
	return overdue
}

func (s *accountState) riskInput(overdueDays int) RiskInput {
	return RiskInput{
		Kind:            s.ref.Kind,
		AnnualRate:      s.rate.InexactFloat64(),
		OverdueDays:     overdueDays,
		HasPenaltyOrFee: s.unpaidPenalty.IsPositive(),
		ForeignCurrency: s.foreign,
		Utilization:     utilization(s.balance, s.creditLimit),
	}
}

// apply runs one allocation through the waterfall and returns the result.
func (s *accountState) apply(amount decimal.Decimal) PaymentResult {
	res := ApplyPaymentWaterfall(amount, s.unpaidPenalty, s.unpaidInterest, s.balance)
	s.unpaidPenalty = nonNegative(s.unpaidPenalty.Sub(res.AppliedPenalty))
	s.unpaidInterest = nonNegative(s.unpaidInterest.Sub(res.AppliedInterest))
	s.balance = nonNegative(s.balance.Sub(res.AppliedPrincipal))
	return res
}

func totalOwed(states []*accountState) decimal.Decimal {
	total := decimal.Zero
	for _, s := range states {
		total = total.Add(s.owed())
	}
	return total
}

// =============================================================================
// SIMULATOR
// =============================================================================

// SimulatePayoff runs the monthly projection. A non-positive payment is not
// an error: no allocation happens, balances only grow, and the result comes
// back unresolved once the horizon is spent.
func SimulatePayoff(in SimulationInput) (SimulationResult, error) {
	if _, err := ParseStrategy(string(in.Strategy)); err != nil {
		return SimulationResult{}, err
	}
	horizon := in.HorizonMonths
	if horizon == 0 {
		horizon = DefaultHorizonMonths
	}
	if horizon < 0 {
		return SimulationResult{}, &InvalidArgumentError{Field: "horizon_months", Value: horizon, Reason: "must not be negative"}
	}

	states := make([]*accountState, 0, len(in.Accounts))
	index := make(map[AccountRef]int, len(in.Accounts))
	for _, a := range in.Accounts {
		if err := a.Validate(); err != nil {
			return SimulationResult{}, err
		}
		if _, dup := index[a.Ref()]; dup {
			return SimulationResult{}, &InvalidArgumentError{Field: "account", Value: a.ID, Reason: "duplicate " + string(a.Kind)}
		}
		index[a.Ref()] = len(states)
		states = append(states, newAccountState(a, in.ReportingCurrency))
	}

	var (
		timeline     = make([]TimelineSample, 0, horizon)
		interestPaid = decimal.Zero
		overdue      = make([]int, len(states))
		periodStart  = StartOfMonth(in.Start)
	)

	for month := 0; month < horizon; month++ {
		periodEnd := AddCalendarMonth(periodStart)

		// 1. Accrue
		for i, s := range states {
			overdue[i] = s.accrueMonth(periodStart, periodEnd)
		}

		// 2. Paid off?
		if !totalOwed(states).IsPositive() {
			payoff := periodStart
			return SimulationResult{
				Strategy:          in.Strategy,
				PayoffDate:        &payoff,
				TotalInterestPaid: interestPaid,
				Months:            month,
				Timeline:          timeline,
			}, nil
		}

		// 3-4. Allocate and pay
		if in.MonthlyPayment.IsPositive() {
			candidates := make([]Candidate, 0, len(states))
			for i, s := range states {
				if !s.owed().IsPositive() {
					continue
				}
				risk, err := ComputeRisk(s.riskInput(overdue[i]))
				if err != nil {
					return SimulationResult{}, err
				}
				candidates = append(candidates, Candidate{
					Ref:        s.ref,
					Balance:    s.owed(),
					AnnualRate: s.rate,
					RiskScore:  risk.Score,
				})
			}

			plan, err := RecommendAllocations(in.MonthlyPayment, candidates, in.Strategy)
			if err != nil {
				return SimulationResult{}, err
			}
			for _, alloc := range plan {
				res := states[index[alloc.Ref]].apply(alloc.Amount)
				interestPaid = interestPaid.Add(res.AppliedPenalty).Add(res.AppliedInterest)
			}
		}

		// 5. Record
		timeline = append(timeline, TimelineSample{
			AsOf:              periodEnd.AddDays(-1),
			TotalRemaining:    totalOwed(states),
			TotalInterestPaid: interestPaid,
		})

		periodStart = periodEnd
	}

	return SimulationResult{
		Strategy:          in.Strategy,
		PayoffDate:        nil,
		TotalInterestPaid: interestPaid,
		Months:            horizon,
		Timeline:          timeline,
	}, nil
}

// CompareStrategies runs the same projection under every strategy, in
// Strategies order. in.Strategy is ignored.
func CompareStrategies(in SimulationInput) ([]SimulationResult, error) {
	results := make([]SimulationResult, 0, len(Strategies))
	for _, strategy := range Strategies {
		run := in
		run.Strategy = strategy
		res, err := SimulatePayoff(run)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
