package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/payoff-engine/fx"
)

// RateStore exposes the fx_rates table as an fx.Cache.
type RateStore struct {
	s *Store
}

var _ fx.Cache = (*RateStore)(nil)

// Rates returns the fx.Cache view of this store.
func (s *Store) Rates() *RateStore {
	return &RateStore{s: s}
}

// Get returns nil, nil for a currency that was never stored.
func (r *RateStore) Get(ctx context.Context, currency string) (*fx.Rate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rate, updated string
	out := fx.Rate{Currency: fx.NormalizeCurrency(currency)}
	err := r.s.db.QueryRowContext(ctx,
		"SELECT to_reporting, updated_on, source FROM fx_rates WHERE currency = ?",
		out.Currency,
	).Scan(&rate, &updated, &out.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}
	out.ToReporting = parseDecimal(rate)
	out.UpdatedOn = parseDate(updated)
	return &out, nil
}

// Put upserts the latest rate for its currency.
func (r *RateStore) Put(ctx context.Context, rate fx.Rate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	query := `
		INSERT INTO fx_rates (currency, to_reporting, updated_on, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(currency) DO UPDATE SET
			to_reporting = excluded.to_reporting,
			updated_on = excluded.updated_on,
			source = excluded.source
	`
	_, err := r.s.db.ExecContext(ctx, query,
		fx.NormalizeCurrency(rate.Currency),
		rate.ToReporting.String(),
		rate.UpdatedOn.String(),
		rate.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

// List returns every stored rate by currency code.
func (r *RateStore) List(ctx context.Context) ([]fx.Rate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows, err := r.s.db.QueryContext(ctx,
		"SELECT currency, to_reporting, updated_on, source FROM fx_rates ORDER BY currency")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := []fx.Rate{}
	for rows.Next() {
		var (
			rate          fx.Rate
			value, updated string
		)
		if err := rows.Scan(&rate.Currency, &value, &updated, &rate.Source); err != nil {
			return nil, err
		}
		rate.ToReporting = parseDecimal(value)
		rate.UpdatedOn = parseDate(updated)
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
