package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
)

// DefaultRedisKey is the hash holding one field per currency.
const DefaultRedisKey = "payoff:fx:rates"

// RedisCache keeps rates in a single Redis hash so every API replica sees
// the same refreshes.
type RedisCache struct {
	client *redis.Client
	key    string
}

type redisRate struct {
	ToReporting decimal.Decimal `json:"to_reporting"`
	UpdatedOn   string          `json:"updated_on"`
	Source      string          `json:"source"`
}

// NewRedisCache connects to addr lazily; the first command dials.
func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisCacheWithClient(rdb, DefaultRedisKey)
}

func NewRedisCacheWithClient(client *redis.Client, key string) *RedisCache {
	return &RedisCache{client: client, key: key}
}

// Ping checks connectivity at startup.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Get(ctx context.Context, currency string) (*Rate, error) {
	code := NormalizeCurrency(currency)
	val, err := r.client.HGet(ctx, r.key, code).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s: %w", code, err)
	}
	rate, err := decodeRedisRate(code, val)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *RedisCache) Put(ctx context.Context, rate Rate) error {
	code := NormalizeCurrency(rate.Currency)
	payload, err := json.Marshal(redisRate{
		ToReporting: rate.ToReporting,
		UpdatedOn:   rate.UpdatedOn.String(),
		Source:      rate.Source,
	})
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key, code, payload).Err()
}

func (r *RedisCache) List(ctx context.Context) ([]Rate, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make([]Rate, 0, len(all))
	for code, val := range all {
		rate, err := decodeRedisRate(code, val)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	SortRates(out)
	return out, nil
}

func decodeRedisRate(code, val string) (Rate, error) {
	var raw redisRate
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		return Rate{}, fmt.Errorf("decode cached rate %s: %w", code, err)
	}
	updated, err := engine.ParseDate(raw.UpdatedOn)
	if err != nil {
		return Rate{}, fmt.Errorf("decode cached rate %s: %w", code, err)
	}
	return Rate{Currency: code, ToReporting: raw.ToReporting, UpdatedOn: updated, Source: raw.Source}, nil
}
