/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements portfolio.Repository (accounts, payments, savings, snapshots)
  and fx.Cache (fx_rates) on one SQLite database file.

KEY TABLES:
  accounts:          Loans and cards, keyed by (kind, id); terms as columns
  payments:          Applied payments, one row per idempotency key
  savings:           Cash buffers counted toward net position
  monthly_snapshots: Dated portfolio totals, one per date
  fx_rates:          Latest rate per currency (upsert)

MONEY:
  Every amount is stored as TEXT in decimal notation and parsed back with
  shopspring/decimal. Floating point never touches a stored balance.

IDENTITY:
  Loans and cards are numbered independently. CreateAccount assigns
  MAX(id)+1 within the kind, inside the same transaction as the insert.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single pooled connection so
  ":memory:" databases are shared by every query.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payoff.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := portfolio.NewService(store, fx.NewConverter("CAD", 1, store.Rates(), nil, log), log)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - portfolio/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - rates.go: fx_rates table
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/portfolio"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ portfolio.Repository = (*Store)(nil)

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (loans and credit cards share one table, keyed by kind)
	CREATE TABLE IF NOT EXISTS accounts (
		kind TEXT NOT NULL CHECK (kind IN ('loan', 'credit_card')),
		id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		balance TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		last_payment_date TEXT,

		-- loan terms
		penalty_rate TEXT,
		due_day INTEGER,
		start_date TEXT,
		currency TEXT,
		debt_type TEXT,
		principal_original TEXT,
		installment_amount TEXT,

		-- card terms
		credit_limit TEXT,
		late_fee TEXT,
		statement_date TEXT,
		due_date TEXT,

		created_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_status
		ON accounts(status);

	-- Payments (one row per idempotency key)
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		idempotency_key TEXT NOT NULL UNIQUE,
		target_kind TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		payment_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount_reporting TEXT NOT NULL,
		applied_penalty TEXT NOT NULL,
		applied_interest TEXT NOT NULL,
		applied_principal TEXT NOT NULL,
		leftover TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (target_kind, target_id) REFERENCES accounts(kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_payments_target
		ON payments(target_kind, target_id, payment_date DESC);

	-- Savings
	CREATE TABLE IF NOT EXISTS savings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance_reporting TEXT NOT NULL
	);

	-- Monthly snapshots (one per date)
	CREATE TABLE IF NOT EXISTS monthly_snapshots (
		id TEXT PRIMARY KEY,
		snapshot_date TEXT NOT NULL UNIQUE,
		total_debt TEXT NOT NULL,
		total_interest TEXT NOT NULL,
		total_savings TEXT NOT NULL,
		net_position TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- FX rates (latest per currency)
	CREATE TABLE IF NOT EXISTS fx_rates (
		currency TEXT PRIMARY KEY,
		to_reporting TEXT NOT NULL,
		updated_on TEXT NOT NULL,
		source TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `kind, id, name, institution, status, balance, annual_rate, last_payment_date,
	penalty_rate, due_day, start_date, currency, debt_type, principal_original, installment_amount,
	credit_limit, late_fee, statement_date, due_date, created_at`

// CreateAccount inserts the record under the next ID for its kind.
func (s *Store) CreateAccount(ctx context.Context, rec portfolio.AccountRecord) (portfolio.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return portfolio.AccountRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	created, err := createAccount(ctx, sqlTx, rec)
	if err != nil {
		return portfolio.AccountRecord{}, err
	}
	return created, sqlTx.Commit()
}

func createAccount(ctx context.Context, q dbtx, rec portfolio.AccountRecord) (portfolio.AccountRecord, error) {
	var next int64
	if err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM accounts WHERE kind = ?", string(rec.Kind),
	).Scan(&next); err != nil {
		return portfolio.AccountRecord{}, fmt.Errorf("failed to allocate account id: %w", err)
	}
	rec.ID = next
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := q.ExecContext(ctx, query, accountArgs(rec)...); err != nil {
		return portfolio.AccountRecord{}, fmt.Errorf("failed to insert account: %w", err)
	}
	return rec, nil
}

// UpdateAccount replaces every mutable column of an existing account.
func (s *Store) UpdateAccount(ctx context.Context, rec portfolio.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccount(ctx, s.db, rec)
}

func updateAccount(ctx context.Context, q dbtx, rec portfolio.AccountRecord) error {
	query := `
		UPDATE accounts SET
			name = ?, institution = ?, status = ?, balance = ?, annual_rate = ?, last_payment_date = ?,
			penalty_rate = ?, due_day = ?, start_date = ?, currency = ?, debt_type = ?,
			principal_original = ?, installment_amount = ?,
			credit_limit = ?, late_fee = ?, statement_date = ?, due_date = ?
		WHERE kind = ? AND id = ?
	`
	cols := accountArgs(rec)
	// accountArgs is (kind, id, <17 columns>, created_at); reorder for UPDATE.
	args := make([]any, 0, len(cols)-1)
	args = append(args, cols[2:len(cols)-1]...)
	args = append(args, cols[0], cols[1])
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return requireOneRow(res)
}

// GetAccount returns nil, nil when the account doesn't exist.
func (s *Store) GetAccount(ctx context.Context, ref engine.AccountRef) (*portfolio.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, ref)
}

func getAccount(ctx context.Context, q dbtx, ref engine.AccountRef) (*portfolio.AccountRecord, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE kind = ? AND id = ?",
		string(ref.Kind), ref.ID,
	)
	rec, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAccounts returns loans first, then cards, by ID.
func (s *Store) ListAccounts(ctx context.Context, filter portfolio.AccountFilter) ([]portfolio.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db, filter)
}

func listAccounts(ctx context.Context, q dbtx, filter portfolio.AccountFilter) ([]portfolio.AccountRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	query := "SELECT " + accountColumns + " FROM accounts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY CASE kind WHEN 'loan' THEN 0 ELSE 1 END, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []portfolio.AccountRecord{}
	for rows.Next() {
		rec, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, rec)
	}
	return accounts, rows.Err()
}

// UpdateBalance sets balance and last payment date.
func (s *Store) UpdateBalance(ctx context.Context, ref engine.AccountRef, balance decimal.Decimal, lastPayment engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBalance(ctx, s.db, ref, balance, lastPayment)
}

func updateBalance(ctx context.Context, q dbtx, ref engine.AccountRef, balance decimal.Decimal, lastPayment engine.Date) error {
	res, err := q.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, last_payment_date = ? WHERE kind = ? AND id = ?",
		balance.String(), lastPayment.String(), string(ref.Kind), ref.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return requireOneRow(res)
}

func accountArgs(rec portfolio.AccountRecord) []any {
	var (
		lastPayment                                  sql.NullString
		penaltyRate, startDate, currency, debtType   sql.NullString
		principalOriginal, installment               sql.NullString
		creditLimit, lateFee, statementDate, dueDate sql.NullString
		dueDay                                       sql.NullInt64
	)

	switch {
	case rec.Kind == engine.KindLoan && rec.Loan != nil:
		l := rec.Loan
		lastPayment = nullDate(l.LastPaymentDate)
		penaltyRate = nullString(l.PenaltyRate.String())
		dueDay = sql.NullInt64{Int64: int64(l.DueDay), Valid: true}
		startDate = nullString(l.StartDate.String())
		currency = nullString(l.Currency)
		debtType = nullString(rec.DebtType)
		principalOriginal = nullString(rec.PrincipalOriginal.String())
		if rec.InstallmentAmount != nil {
			installment = nullString(rec.InstallmentAmount.String())
		}
	case rec.Kind == engine.KindCreditCard && rec.Card != nil:
		c := rec.Card
		lastPayment = nullDate(c.LastPaymentDate)
		creditLimit = nullString(c.CreditLimit.String())
		lateFee = nullString(c.LateFee.String())
		statementDate = nullString(c.StatementDate.String())
		dueDate = nullString(c.DueDate.String())
	}

	return []any{
		string(rec.Kind), rec.ID, rec.Name, rec.Institution, string(rec.Status),
		rec.Balance.String(), rec.AnnualRate.String(), lastPayment,
		penaltyRate, dueDay, startDate, currency, debtType, principalOriginal, installment,
		creditLimit, lateFee, statementDate, dueDate,
		rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (portfolio.AccountRecord, error) {
	var (
		rec                                          portfolio.AccountRecord
		kind, status, balance, rate, createdAt       string
		lastPayment                                  sql.NullString
		penaltyRate, startDate, currency, debtType   sql.NullString
		principalOriginal, installment               sql.NullString
		creditLimit, lateFee, statementDate, dueDate sql.NullString
		dueDay                                       sql.NullInt64
	)

	err := row.Scan(
		&kind, &rec.ID, &rec.Name, &rec.Institution, &status, &balance, &rate, &lastPayment,
		&penaltyRate, &dueDay, &startDate, &currency, &debtType, &principalOriginal, &installment,
		&creditLimit, &lateFee, &statementDate, &dueDate, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan account: %w", err)
	}

	rec.Kind = engine.AccountKind(kind)
	rec.Status = portfolio.AccountStatus(status)
	rec.Balance = parseDecimal(balance)
	rec.AnnualRate = parseDecimal(rate)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	switch rec.Kind {
	case engine.KindLoan:
		rec.Loan = &engine.LoanTerms{
			PenaltyRate:     parseDecimal(penaltyRate.String),
			DueDay:          int(dueDay.Int64),
			StartDate:       parseDate(startDate.String),
			LastPaymentDate: parseNullDate(lastPayment),
			Currency:        currency.String,
		}
		rec.DebtType = debtType.String
		rec.PrincipalOriginal = parseDecimal(principalOriginal.String)
		if installment.Valid {
			amt := parseDecimal(installment.String)
			rec.InstallmentAmount = &amt
		}
	case engine.KindCreditCard:
		rec.Card = &engine.CardTerms{
			CreditLimit:     parseDecimal(creditLimit.String),
			LateFee:         parseDecimal(lateFee.String),
			StatementDate:   parseDate(statementDate.String),
			DueDate:         parseDate(dueDate.String),
			LastPaymentDate: parseNullDate(lastPayment),
		}
	}
	return rec, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, idempotency_key, target_kind, target_id, payment_date, amount, currency,
	amount_reporting, applied_penalty, applied_interest, applied_principal, leftover, balance_after, created_at`

// AddPayment inserts a payment. A reused idempotency key is ErrDuplicatePayment.
func (s *Store) AddPayment(ctx context.Context, p portfolio.PaymentRecord) (portfolio.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addPayment(ctx, s.db, p)
}

func addPayment(ctx context.Context, q dbtx, p portfolio.PaymentRecord) (portfolio.PaymentRecord, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO payments
		(idempotency_key, target_kind, target_id, payment_date, amount, currency,
		 amount_reporting, applied_penalty, applied_interest, applied_principal, leftover, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := q.ExecContext(ctx, query,
		p.IdempotencyKey,
		string(p.Target.Kind),
		p.Target.ID,
		p.Date.String(),
		p.Amount.String(),
		p.Currency,
		p.AmountReporting.String(),
		p.AppliedPenalty.String(),
		p.AppliedInterest.String(),
		p.AppliedPrincipal.String(),
		p.Leftover.String(),
		p.BalanceAfter.String(),
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return portfolio.PaymentRecord{}, portfolio.ErrDuplicatePayment
		}
		return portfolio.PaymentRecord{}, fmt.Errorf("failed to insert payment: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return p, nil
}

// ListPayments returns matching payments, newest payment date first.
func (s *Store) ListPayments(ctx context.Context, filter portfolio.PaymentFilter) ([]portfolio.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Target != nil {
		where = append(where, "target_kind = ? AND target_id = ?")
		args = append(args, string(filter.Target.Kind), filter.Target.ID)
	}
	if filter.Kind != nil {
		where = append(where, "target_kind = ?")
		args = append(args, string(*filter.Kind))
	}
	query := "SELECT " + paymentColumns + " FROM payments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY payment_date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []portfolio.PaymentRecord{}
	for rows.Next() {
		var (
			p                                                       portfolio.PaymentRecord
			kind, date, amount, amountReporting                     string
			penalty, interest, principal, leftover, after, created string
		)
		if err := rows.Scan(&p.ID, &p.IdempotencyKey, &kind, &p.Target.ID, &date, &amount, &p.Currency,
			&amountReporting, &penalty, &interest, &principal, &leftover, &after, &created); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Target.Kind = engine.AccountKind(kind)
		p.Date = parseDate(date)
		p.Amount = parseDecimal(amount)
		p.AmountReporting = parseDecimal(amountReporting)
		p.AppliedPenalty = parseDecimal(penalty)
		p.AppliedInterest = parseDecimal(interest)
		p.AppliedPrincipal = parseDecimal(principal)
		p.Leftover = parseDecimal(leftover)
		p.BalanceAfter = parseDecimal(after)
		p.CreatedAt, _ = time.Parse(time.RFC3339, created)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// SAVINGS
// =============================================================================

func (s *Store) AddSavings(ctx context.Context, sv portfolio.SavingsAccount) (portfolio.SavingsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO savings (name, currency, balance_reporting) VALUES (?, ?, ?)",
		sv.Name, sv.Currency, sv.BalanceReporting.String(),
	)
	if err != nil {
		return portfolio.SavingsAccount{}, fmt.Errorf("failed to insert savings: %w", err)
	}
	sv.ID, _ = res.LastInsertId()
	return sv, nil
}

func (s *Store) ListSavings(ctx context.Context) ([]portfolio.SavingsAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, currency, balance_reporting FROM savings ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	savings := []portfolio.SavingsAccount{}
	for rows.Next() {
		var (
			sv      portfolio.SavingsAccount
			balance string
		)
		if err := rows.Scan(&sv.ID, &sv.Name, &sv.Currency, &balance); err != nil {
			return nil, err
		}
		sv.BalanceReporting = parseDecimal(balance)
		savings = append(savings, sv)
	}
	return savings, rows.Err()
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// AddSnapshot inserts a snapshot. A second one for the date is ErrDuplicateSnapshot.
func (s *Store) AddSnapshot(ctx context.Context, snap portfolio.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_snapshots
		(id, snapshot_date, total_debt, total_interest, total_savings, net_position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Date.String(),
		snap.TotalDebt.String(), snap.TotalInterest.String(),
		snap.TotalSavings.String(), snap.NetPosition.String(),
		snap.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return portfolio.ErrDuplicateSnapshot
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns snapshots oldest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]portfolio.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot_date, total_debt, total_interest, total_savings, net_position, created_at
		FROM monthly_snapshots ORDER BY snapshot_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []portfolio.Snapshot{}
	for rows.Next() {
		var (
			snap                                       portfolio.Snapshot
			date, debt, interest, savings, net, created string
		)
		if err := rows.Scan(&snap.ID, &date, &debt, &interest, &savings, &net, &created); err != nil {
			return nil, err
		}
		snap.Date = parseDate(date)
		snap.TotalDebt = parseDecimal(debt)
		snap.TotalInterest = parseDecimal(interest)
		snap.TotalSavings = parseDecimal(savings)
		snap.NetPosition = parseDecimal(net)
		snap.CreatedAt, _ = time.Parse(time.RFC3339, created)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction. The store
// passed to fn writes through the transaction; reads go through it too so
// fn sees its own writes.
func (s *Store) WithTx(ctx context.Context, fn func(portfolio.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the Repository view inside WithTx. It covers the account and
// payment writes a payment needs; the rest is refused rather than silently
// escaping the transaction.
type txStore struct {
	tx *sql.Tx
}

var errNotInTx = errors.New("operation not supported inside a transaction")

func (ts *txStore) CreateAccount(ctx context.Context, rec portfolio.AccountRecord) (portfolio.AccountRecord, error) {
	return createAccount(ctx, ts.tx, rec)
}

func (ts *txStore) UpdateAccount(ctx context.Context, rec portfolio.AccountRecord) error {
	return updateAccount(ctx, ts.tx, rec)
}

func (ts *txStore) GetAccount(ctx context.Context, ref engine.AccountRef) (*portfolio.AccountRecord, error) {
	return getAccount(ctx, ts.tx, ref)
}

func (ts *txStore) ListAccounts(ctx context.Context, filter portfolio.AccountFilter) ([]portfolio.AccountRecord, error) {
	return listAccounts(ctx, ts.tx, filter)
}

func (ts *txStore) UpdateBalance(ctx context.Context, ref engine.AccountRef, balance decimal.Decimal, lastPayment engine.Date) error {
	return updateBalance(ctx, ts.tx, ref, balance, lastPayment)
}

func (ts *txStore) AddPayment(ctx context.Context, p portfolio.PaymentRecord) (portfolio.PaymentRecord, error) {
	return addPayment(ctx, ts.tx, p)
}

func (ts *txStore) ListPayments(context.Context, portfolio.PaymentFilter) ([]portfolio.PaymentRecord, error) {
	return nil, errNotInTx
}

func (ts *txStore) AddSavings(context.Context, portfolio.SavingsAccount) (portfolio.SavingsAccount, error) {
	return portfolio.SavingsAccount{}, errNotInTx
}

func (ts *txStore) ListSavings(context.Context) ([]portfolio.SavingsAccount, error) {
	return nil, errNotInTx
}

func (ts *txStore) AddSnapshot(context.Context, portfolio.Snapshot) error {
	return errNotInTx
}

func (ts *txStore) ListSnapshots(context.Context) ([]portfolio.Snapshot, error) {
	return nil, errNotInTx
}

func (ts *txStore) WithTx(ctx context.Context, fn func(portfolio.Repository) error) error {
	return fn(ts)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "accounts", "savings", "monthly_snapshots", "fx_rates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d *engine.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func parseNullDate(s sql.NullString) *engine.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := parseDate(s.String)
	return &d
}

func parseDate(s string) engine.Date {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return engine.Date{}
	}
	return engine.DateOf(t)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return portfolio.ErrAccountNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
