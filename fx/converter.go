package fx

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payoff-engine/engine"
)

// Fetcher retrieves a live rate for one currency into the reporting
// currency.
type Fetcher interface {
	Fetch(ctx context.Context, currency, reporting string) (decimal.Decimal, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, currency, reporting string) (decimal.Decimal, error)

func (f FetcherFunc) Fetch(ctx context.Context, currency, reporting string) (decimal.Decimal, error) {
	return f(ctx, currency, reporting)
}

// Converter turns foreign amounts into the reporting currency.
//
// A cached rate is used while its age is at most maxAgeDays. Otherwise the
// fetcher is consulted and the result cached with source "api". Without a
// fetcher a stale or missing rate is ErrRateUnavailable.
type Converter struct {
	reporting  string
	maxAgeDays int
	cache      Cache
	fetcher    Fetcher
	log        *logrus.Logger
}

// NewConverter builds a converter. fetcher may be nil.
func NewConverter(reporting string, maxAgeDays int, cache Cache, fetcher Fetcher, log *logrus.Logger) *Converter {
	if log == nil {
		log = logrus.New()
	}
	return &Converter{
		reporting:  NormalizeCurrency(reporting),
		maxAgeDays: maxAgeDays,
		cache:      cache,
		fetcher:    fetcher,
		log:        log,
	}
}

// Reporting is the currency every engine amount is expressed in.
func (c *Converter) Reporting() string { return c.reporting }

// Cache exposes the backing cache for listing and manual overrides.
func (c *Converter) Cache() Cache { return c.cache }

// RateFor returns the multiplier from currency into the reporting currency.
func (c *Converter) RateFor(ctx context.Context, currency string, asOf engine.Date) (decimal.Decimal, error) {
	code := NormalizeCurrency(currency)
	if code == "" || code == c.reporting {
		return decimal.NewFromInt(1), nil
	}

	cached, err := c.cache.Get(ctx, code)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read cached rate %s: %w", code, err)
	}
	if cached != nil && cached.AgeDays(asOf) <= c.maxAgeDays {
		return cached.ToReporting, nil
	}

	if c.fetcher == nil {
		return decimal.Zero, fmt.Errorf("%w: %s is stale or missing and no fetcher is configured", ErrRateUnavailable, code)
	}

	rate, err := c.fetcher.Fetch(ctx, code, c.reporting)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fetch %s: %v", ErrRateUnavailable, code, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s for %s", ErrRateUnavailable, rate, code)
	}

	if err := c.cache.Put(ctx, Rate{Currency: code, ToReporting: rate, UpdatedOn: asOf, Source: "api"}); err != nil {
		// The fetched rate is still good for this call.
		c.log.WithError(err).WithField("currency", code).Warn("failed to cache fx rate")
	}
	c.log.WithFields(logrus.Fields{"currency": code, "rate": rate.String()}).Debug("fetched fx rate")
	return rate, nil
}

// ToReporting converts amount from currency into the reporting currency.
func (c *Converter) ToReporting(ctx context.Context, amount decimal.Decimal, currency string, asOf engine.Date) (decimal.Decimal, error) {
	rate, err := c.RateFor(ctx, currency, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}
