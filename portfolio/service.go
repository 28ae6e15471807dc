/*
service.go - Portfolio service: the engine applied to stored accounts

PURPOSE:
  The engine is pure: it knows nothing about storage, currencies or clocks.
  The service is where those meet. It loads accounts, converts foreign
  amounts, runs the engine and writes results back.

OPERATIONS:
  Overview:         Score every active account as of a day (dashboard)
  RecordPayment:    Convert, accrue, reject underpayment, waterfall, persist
  Recommend:        Rank and split a budget, after an emergency reserve
  Simulate:         Month-by-month projection of the active portfolio
  CompareStrategies: Simulate under every strategy
  TakeSnapshot:     Persist the dated totals, once per date

PAYMENT FLOW:
  1. Convert the amount into the reporting currency (fx.Converter)
  2. In one transaction:
     a. Look up the target; closed accounts refuse payments
     b. Accrue as of the payment date
     c. Reject when the amount is below penalty + interest
     d. Waterfall: penalty -> interest -> principal
     e. Store the payment record, then the new balance (floored at 0)
        and last payment date

  Accrual restarts from the payment date, so everything accrued up to that
  day is settled by the payment and never carried forward.

SEE ALSO:
  - engine/: Every formula used here
  - repository.go: Persistence interface
  - fx/converter.go: Currency conversion
*/
package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/fx"
)

// Service composes the engine with a repository and a currency converter.
type Service struct {
	repo    Repository
	fx      *fx.Converter
	log     *logrus.Logger
	horizon int
	now     func() time.Time
}

type Option func(*Service)

// WithHorizon caps simulations at n months.
func WithHorizon(n int) Option {
	return func(s *Service) { s.horizon = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, converter *fx.Converter, log *logrus.Logger, opts ...Option) *Service {
	if log == nil {
		log = logrus.New()
	}
	s := &Service{
		repo:    repo,
		fx:      converter,
		log:     log,
		horizon: engine.DefaultHorizonMonths,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the service clock truncated to a date.
func (s *Service) Today() engine.Date {
	return engine.DateOf(s.now())
}

func (s *Service) ReportingCurrency() string {
	return s.fx.Reporting()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// NewAccount describes an account to create. Balance is in Currency and is
// converted once, at creation. Loans default Currency to the loan currency.
type NewAccount struct {
	Record   AccountRecord
	Currency string
}

// CreateAccount converts the opening balance, validates and stores.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (AccountRecord, error) {
	rec := in.Record
	currency := in.Currency
	if currency == "" && rec.Kind == engine.KindLoan && rec.Loan != nil {
		currency = rec.Loan.Currency
	}

	balance, err := s.fx.ToReporting(ctx, rec.Balance, currency, s.Today())
	if err != nil {
		return AccountRecord{}, fmt.Errorf("convert opening balance: %w", err)
	}
	rec.Balance = balance
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	if err := rec.Validate(); err != nil {
		return AccountRecord{}, err
	}
	rec.CreatedAt = s.now()

	created, err := s.repo.CreateAccount(ctx, rec)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("create account: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"kind":    created.Kind,
		"id":      created.ID,
		"balance": created.Balance.StringFixed(2),
	}).Info("account created")
	return created, nil
}

// UpdateAccount replaces the stored record. Balances are taken as given, in
// the reporting currency.
func (s *Service) UpdateAccount(ctx context.Context, rec AccountRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if _, err := s.GetAccount(ctx, rec.Ref()); err != nil {
		return err
	}
	return s.repo.UpdateAccount(ctx, rec)
}

// GetAccount returns ErrAccountNotFound for a missing ref.
func (s *Service) GetAccount(ctx context.Context, ref engine.AccountRef) (AccountRecord, error) {
	rec, err := s.repo.GetAccount(ctx, ref)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("get account: %w", err)
	}
	if rec == nil {
		return AccountRecord{}, fmt.Errorf("%w: %s %d", ErrAccountNotFound, ref.Kind, ref.ID)
	}
	return *rec, nil
}

func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]AccountRecord, error) {
	return s.repo.ListAccounts(ctx, filter)
}

// =============================================================================
// POSITIONS
// =============================================================================

// Overview scores every active account as of asOf and totals the portfolio.
func (s *Service) Overview(ctx context.Context, asOf engine.Date) (Overview, error) {
	positions, err := s.positions(ctx, asOf)
	if err != nil {
		return Overview{}, err
	}
	savings, err := s.totalSavings(ctx)
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{
		AsOf:          asOf,
		Positions:     positions,
		TotalDebt:     decimal.Zero,
		TotalInterest: decimal.Zero,
		TotalSavings:  savings,
	}
	for i := range positions {
		p := &positions[i]
		ov.TotalDebt = ov.TotalDebt.Add(p.TotalOwed())
		ov.TotalInterest = ov.TotalInterest.Add(p.Accrual.Total())
		if ov.HighestRisk == nil || p.Risk.Score > ov.HighestRisk.Risk.Score {
			ov.HighestRisk = p
		}
	}
	ov.NetPosition = savings.Sub(ov.TotalDebt)
	return ov, nil
}

func (s *Service) positions(ctx context.Context, asOf engine.Date) ([]Position, error) {
	accounts, err := s.repo.ListAccounts(ctx, ActiveOnly())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]Position, 0, len(accounts))
	for _, rec := range accounts {
		p, err := s.score(rec, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) score(rec AccountRecord, asOf engine.Date) (Position, error) {
	accrual, err := engine.AccrueAccount(rec.Account, asOf)
	if err != nil {
		return Position{}, fmt.Errorf("accrue %s %d: %w", rec.Kind, rec.ID, err)
	}
	risk, err := engine.ScoreAccount(rec.Account, accrual, s.ReportingCurrency())
	if err != nil {
		return Position{}, fmt.Errorf("score %s %d: %w", rec.Kind, rec.ID, err)
	}
	return Position{Account: rec, Accrual: accrual, Risk: risk}, nil
}

func (s *Service) totalSavings(ctx context.Context) (decimal.Decimal, error) {
	savings, err := s.repo.ListSavings(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list savings: %w", err)
	}
	total := decimal.Zero
	for _, sv := range savings {
		total = total.Add(sv.BalanceReporting)
	}
	return total, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment applies one payment. See PAYMENT FLOW above.
//
// The account is read, accrued and written inside one repository
// transaction, so concurrent payments to the same account apply in turn
// against the balance the previous one left.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (PaymentRecord, error) {
	if !req.Amount.IsPositive() {
		return PaymentRecord{}, &engine.InvalidArgumentError{Field: "amount", Value: req.Amount, Reason: "must be positive"}
	}
	if req.Date.IsZero() {
		req.Date = s.Today()
	}

	// Must run before WithTx: the SQLite rate cache takes the store lock.
	amount, err := s.fx.ToReporting(ctx, req.Amount, req.Currency, req.Date)
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("convert payment: %w", err)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	currency := fx.NormalizeCurrency(req.Currency)
	if currency == "" {
		currency = s.ReportingCurrency()
	}

	var payment PaymentRecord
	err = s.repo.WithTx(ctx, func(tx Repository) error {
		rec, err := tx.GetAccount(ctx, req.Target)
		if err != nil {
			return fmt.Errorf("get account: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("%w: %s %d", ErrAccountNotFound, req.Target.Kind, req.Target.ID)
		}
		if !rec.IsActive() {
			return fmt.Errorf("%w: %s %d", ErrAccountClosed, rec.Kind, rec.ID)
		}

		accrual, err := engine.AccrueAccount(rec.Account, req.Date)
		if err != nil {
			return err
		}
		if amount.LessThan(accrual.Total()) {
			return &UnderpaymentError{Target: req.Target, Amount: amount, Required: accrual.Total()}
		}

		split := engine.ApplyPaymentWaterfall(amount, accrual.Penalty, accrual.Interest, rec.Balance)
		newBalance := rec.Balance.Sub(split.AppliedPrincipal)
		if newBalance.IsNegative() {
			newBalance = decimal.Zero
		}

		stored, err := tx.AddPayment(ctx, PaymentRecord{
			IdempotencyKey:   key,
			Target:           req.Target,
			Date:             req.Date,
			Amount:           req.Amount,
			Currency:         currency,
			AmountReporting:  amount,
			AppliedPenalty:   split.AppliedPenalty,
			AppliedInterest:  split.AppliedInterest,
			AppliedPrincipal: split.AppliedPrincipal,
			Leftover:         split.Leftover,
			BalanceAfter:     newBalance,
			CreatedAt:        s.now(),
		})
		if err != nil {
			return err
		}
		payment = stored
		return tx.UpdateBalance(ctx, req.Target, newBalance, req.Date)
	})
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("record payment: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"kind":      req.Target.Kind,
		"id":        req.Target.ID,
		"amount":    amount.StringFixed(2),
		"penalty":   payment.AppliedPenalty.StringFixed(2),
		"interest":  payment.AppliedInterest.StringFixed(2),
		"principal": payment.AppliedPrincipal.StringFixed(2),
		"leftover":  payment.Leftover.StringFixed(2),
	}).Info("payment recorded")
	return payment, nil
}

func (s *Service) ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, error) {
	return s.repo.ListPayments(ctx, filter)
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// RecommendRequest asks how to split Available (in Currency) across the
// active accounts, keeping Reserve (reporting currency) back.
type RecommendRequest struct {
	Available decimal.Decimal
	Currency  string
	Reserve   decimal.Decimal
	Strategy  engine.Strategy
	AsOf      engine.Date
}

// Recommend ranks active accounts by the strategy and splits the budget.
// Candidates are weighted by their outstanding balance.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) ([]engine.Allocation, error) {
	if req.AsOf.IsZero() {
		req.AsOf = s.Today()
	}
	available, err := s.fx.ToReporting(ctx, req.Available, req.Currency, req.AsOf)
	if err != nil {
		return nil, fmt.Errorf("convert budget: %w", err)
	}

	positions, err := s.positions(ctx, req.AsOf)
	if err != nil {
		return nil, err
	}
	candidates := make([]engine.Candidate, 0, len(positions))
	for _, p := range positions {
		candidates = append(candidates, engine.Candidate{
			Ref:        p.Account.Ref(),
			Balance:    p.Account.Balance,
			AnnualRate: p.Account.AnnualRate,
			RiskScore:  p.Risk.Score,
		})
	}
	return engine.RecommendWithReserve(available, req.Reserve, candidates, req.Strategy)
}

// =============================================================================
// SIMULATION
// =============================================================================

// SimulateRequest is a what-if projection over the active portfolio.
type SimulateRequest struct {
	Start          engine.Date
	MonthlyPayment decimal.Decimal
	Strategy       engine.Strategy
}

func (s *Service) simulationInput(ctx context.Context, req SimulateRequest) (engine.SimulationInput, error) {
	accounts, err := s.repo.ListAccounts(ctx, ActiveOnly())
	if err != nil {
		return engine.SimulationInput{}, fmt.Errorf("list accounts: %w", err)
	}
	in := engine.SimulationInput{
		Accounts:          make([]engine.Account, 0, len(accounts)),
		Start:             req.Start,
		MonthlyPayment:    req.MonthlyPayment,
		Strategy:          req.Strategy,
		HorizonMonths:     s.horizon,
		ReportingCurrency: s.ReportingCurrency(),
	}
	if in.Start.IsZero() {
		in.Start = s.Today()
	}
	for _, rec := range accounts {
		in.Accounts = append(in.Accounts, rec.Account)
	}
	return in, nil
}

// Simulate projects the active portfolio without touching stored data.
func (s *Service) Simulate(ctx context.Context, req SimulateRequest) (engine.SimulationResult, error) {
	in, err := s.simulationInput(ctx, req)
	if err != nil {
		return engine.SimulationResult{}, err
	}
	return engine.SimulatePayoff(in)
}

// CompareStrategies simulates under every strategy; req.Strategy is ignored.
func (s *Service) CompareStrategies(ctx context.Context, req SimulateRequest) ([]engine.SimulationResult, error) {
	in, err := s.simulationInput(ctx, req)
	if err != nil {
		return nil, err
	}
	return engine.CompareStrategies(in)
}

// =============================================================================
// SAVINGS
// =============================================================================

// AddSavings converts the balance from currency and stores the account.
func (s *Service) AddSavings(ctx context.Context, name, currency string, balance decimal.Decimal) (SavingsAccount, error) {
	if name == "" {
		return SavingsAccount{}, &engine.InvalidArgumentError{Field: "name", Value: name, Reason: "required"}
	}
	if balance.IsNegative() {
		return SavingsAccount{}, &engine.InvalidArgumentError{Field: "balance", Value: balance, Reason: "must not be negative"}
	}
	converted, err := s.fx.ToReporting(ctx, balance, currency, s.Today())
	if err != nil {
		return SavingsAccount{}, fmt.Errorf("convert savings: %w", err)
	}
	code := fx.NormalizeCurrency(currency)
	if code == "" {
		code = s.ReportingCurrency()
	}
	return s.repo.AddSavings(ctx, SavingsAccount{Name: name, Currency: code, BalanceReporting: converted})
}

func (s *Service) ListSavings(ctx context.Context) ([]SavingsAccount, error) {
	return s.repo.ListSavings(ctx)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// TakeSnapshot records the portfolio totals as of date. A second snapshot
// for the same date is ErrDuplicateSnapshot.
func (s *Service) TakeSnapshot(ctx context.Context, date engine.Date) (Snapshot, error) {
	snap, err := s.buildSnapshot(ctx, date, date)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.repo.AddSnapshot(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("add snapshot: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"date":       date.String(),
		"total_debt": snap.TotalDebt.StringFixed(2),
		"net":        snap.NetPosition.StringFixed(2),
	}).Info("snapshot taken")
	return snap, nil
}

// TakeMonthlySnapshot snapshots the first of the current month, scored as
// of today. An existing snapshot for the month is not an error; the bool
// reports whether a row was written.
func (s *Service) TakeMonthlySnapshot(ctx context.Context) (bool, error) {
	today := s.Today()
	snap, err := s.buildSnapshot(ctx, engine.StartOfMonth(today), today)
	if err != nil {
		return false, err
	}
	err = s.repo.AddSnapshot(ctx, snap)
	if IsConflict(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add snapshot: %w", err)
	}
	return true, nil
}

func (s *Service) buildSnapshot(ctx context.Context, date, scoredAsOf engine.Date) (Snapshot, error) {
	ov, err := s.Overview(ctx, scoredAsOf)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:            uuid.NewString(),
		Date:          date,
		TotalDebt:     ov.TotalDebt,
		TotalInterest: ov.TotalInterest,
		TotalSavings:  ov.TotalSavings,
		NetPosition:   ov.NetPosition,
		CreatedAt:     s.now(),
	}, nil
}

func (s *Service) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	return s.repo.ListSnapshots(ctx)
}

// =============================================================================
// FX RATES
// =============================================================================

// ListRates returns every cached rate by currency.
func (s *Service) ListRates(ctx context.Context) ([]fx.Rate, error) {
	return s.fx.Cache().List(ctx)
}

// SetRate stores a manual rate into the reporting currency, dated today.
func (s *Service) SetRate(ctx context.Context, currency string, toReporting decimal.Decimal) (fx.Rate, error) {
	code := fx.NormalizeCurrency(currency)
	if len(code) != 3 {
		return fx.Rate{}, &engine.InvalidArgumentError{Field: "currency", Value: currency, Reason: "must be a 3-letter ISO code"}
	}
	if code == s.ReportingCurrency() {
		return fx.Rate{}, &engine.InvalidArgumentError{Field: "currency", Value: currency, Reason: "is the reporting currency"}
	}
	if !toReporting.IsPositive() {
		return fx.Rate{}, &engine.InvalidArgumentError{Field: "to_reporting", Value: toReporting, Reason: "must be positive"}
	}
	rate := fx.Rate{Currency: code, ToReporting: toReporting, UpdatedOn: s.Today(), Source: "manual"}
	if err := s.fx.Cache().Put(ctx, rate); err != nil {
		return fx.Rate{}, fmt.Errorf("save rate: %w", err)
	}
	s.log.WithFields(logrus.Fields{"currency": code, "rate": toReporting.String()}).Info("fx rate set")
	return rate, nil
}
