package fx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/fx"
)

const ecbSample = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<gesmes:Sender>
		<gesmes:name>European Central Bank</gesmes:name>
	</gesmes:Sender>
	<Cube>
		<Cube time="2025-03-04">
			<Cube currency="USD" rate="1.25"/>
			<Cube currency="CAD" rate="1.50"/>
			<Cube currency="GBP" rate="0.80"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func ecbServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestECBFetcher_CrossRates(t *testing.T) {
	srv := ecbServer(t, http.StatusOK, ecbSample)
	f := fx.NewECBFetcher(srv.URL, nil)
	ctx := context.Background()

	tests := []struct {
		currency, reporting, want string
	}{
		{"USD", "CAD", "1.2"},   // 1.50 / 1.25
		{"EUR", "CAD", "1.5"},   // EUR is the base
		{"CAD", "EUR", "0.6666666666666667"},
		{"gbp", "usd", "1.5625"}, // 1.25 / 0.80
	}
	for _, tt := range tests {
		got, err := f.Fetch(ctx, tt.currency, tt.reporting)
		require.NoError(t, err, "%s->%s", tt.currency, tt.reporting)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s->%s: got %s", tt.currency, tt.reporting, got)
	}
}

func TestECBFetcher_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := fx.NewECBFetcher(ecbServer(t, http.StatusOK, ecbSample).URL, nil).Fetch(ctx, "JPY", "CAD")
	assert.Error(t, err, "currency not quoted")

	_, err = fx.NewECBFetcher(ecbServer(t, http.StatusServiceUnavailable, "").URL, nil).Fetch(ctx, "USD", "CAD")
	assert.Error(t, err, "bad status")

	_, err = fx.NewECBFetcher(ecbServer(t, http.StatusOK, "<html>").URL, nil).Fetch(ctx, "USD", "CAD")
	assert.Error(t, err, "malformed XML")

	_, err = fx.NewECBFetcher(ecbServer(t, http.StatusOK, `<Envelope><Cube/></Envelope>`).URL, nil).Fetch(ctx, "USD", "CAD")
	assert.Error(t, err, "no rates")
}

func TestECBFetcher_DrivesConverter(t *testing.T) {
	srv := ecbServer(t, http.StatusOK, ecbSample)
	c := fx.NewConverter("CAD", 1, fx.NewMemoryCache(), fx.NewECBFetcher(srv.URL, nil), nil)

	got, err := c.ToReporting(context.Background(), decimal.NewFromInt(100), "USD", engine.NewDate(2025, time.March, 4))
	require.NoError(t, err)
	assert.Equal(t, "120", got.String())
}

// Runs only against a live server: REDIS_ADDR=localhost:6379 go test ./fx
func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	cache := fx.NewRedisCache(addr)
	defer cache.Close()
	require.NoError(t, cache.Ping(ctx))

	rate := fx.Rate{Currency: "usd", ToReporting: decimal.RequireFromString("1.3712"), UpdatedOn: engine.NewDate(2025, time.June, 1), Source: "ecb"}
	require.NoError(t, cache.Put(ctx, rate))

	got, err := cache.Get(ctx, "USD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, got.ToReporting.Equal(rate.ToReporting))
	assert.True(t, got.UpdatedOn.Equal(rate.UpdatedOn))
}
