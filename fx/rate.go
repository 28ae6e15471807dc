/*
rate.go - Exchange rates into the reporting currency

PURPOSE:
  Debts originated in another currency are converted once, at the edge,
  before they ever reach the engine. This package owns that conversion:
  the Rate record, where rates are cached, and how a stale rate is
  refreshed.

CACHE BACKENDS:
  - MemoryCache: in-process map, for tests and single-node dev
  - RedisCache:  shared cache across API replicas (redis.go)
  - sqlite.RateStore: durable fx_rates table (store/sqlite)

  All three satisfy Cache. Currency codes are upper-cased on the way in.

SEE ALSO:
  - converter.go: Staleness rules and the refresh path
  - ecb.go: Reference-rate fetcher
*/
package fx

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
)

// ErrRateUnavailable is returned when no fresh rate exists and none can be
// fetched.
var ErrRateUnavailable = errors.New("fx rate unavailable")

// Rate converts one unit of Currency into the reporting currency.
type Rate struct {
	Currency    string
	ToReporting decimal.Decimal
	UpdatedOn   engine.Date
	Source      string // "manual", "api", "ecb"
}

// AgeDays is the number of whole days since the rate was stored.
func (r Rate) AgeDays(asOf engine.Date) int {
	return engine.DaysBetween(r.UpdatedOn, asOf)
}

// NormalizeCurrency upper-cases and trims an ISO code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Cache stores the latest rate per currency. Get returns nil, nil when the
// currency has never been stored.
type Cache interface {
	Get(ctx context.Context, currency string) (*Rate, error)
	Put(ctx context.Context, rate Rate) error
	List(ctx context.Context) ([]Rate, error)
}

// =============================================================================
// MEMORY CACHE
// =============================================================================

// MemoryCache is a goroutine-safe in-process Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	rates map[string]Rate
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{rates: make(map[string]Rate)}
}

func (m *MemoryCache) Get(_ context.Context, currency string) (*Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rates[NormalizeCurrency(currency)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryCache) Put(_ context.Context, rate Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rate.Currency = NormalizeCurrency(rate.Currency)
	m.rates[rate.Currency] = rate
	return nil
}

func (m *MemoryCache) List(_ context.Context) ([]Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Rate, 0, len(m.rates))
	for _, r := range m.rates {
		out = append(out, r)
	}
	SortRates(out)
	return out, nil
}

// SortRates orders rates by currency code.
func SortRates(rates []Rate) {
	sort.Slice(rates, func(i, j int) bool { return rates[i].Currency < rates[j].Currency })
}
