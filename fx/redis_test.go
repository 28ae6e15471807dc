package fx

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payoff-engine/engine"
)

func TestDecodeRedisRate(t *testing.T) {
	payload, err := json.Marshal(redisRate{
		ToReporting: decimal.RequireFromString("0.016"),
		UpdatedOn:   "2025-03-01",
		Source:      "ecb",
	})
	require.NoError(t, err)

	rate, err := decodeRedisRate("INR", string(payload))
	require.NoError(t, err)

	assert.Equal(t, "INR", rate.Currency)
	assert.True(t, rate.ToReporting.Equal(decimal.RequireFromString("0.016")))
	assert.True(t, rate.UpdatedOn.Equal(engine.NewDate(2025, time.March, 1)))
	assert.Equal(t, "ecb", rate.Source)
}

func TestDecodeRedisRate_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		val  string
	}{
		{"not json", "1.35"},
		{"bad date", `{"to_reporting":"1.35","updated_on":"March 1","source":"manual"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeRedisRate("USD", tt.val); err == nil {
				t.Errorf("decodeRedisRate(%q) succeeded, want error", tt.val)
			}
		})
	}
}

func TestRedisCache_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewRedisCacheWithClient(client, DefaultRedisKey)
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, cache.Ping(ctx))
	_, err := cache.Get(ctx, "USD")
	assert.Error(t, err, "a connection error is not a cache miss")
}
