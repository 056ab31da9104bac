package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dlindgren/weather-forecast-service/internal/models"
)

// RedisCache implements Cache using redis. Payloads are stored as JSON with
// redis-side expiry, so reads past the TTL are plain misses.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a RedisCache for the given address (host:port).
// password and db use the server defaults when zero-valued.
func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *RedisCache) Get(ctx context.Context, key string) (models.ForecastPayload, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return models.ForecastPayload{}, false, nil
	}
	if err != nil {
		return models.ForecastPayload{}, false, err
	}
	var data models.ForecastPayload
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return models.ForecastPayload{}, false, err
	}
	return data, true, nil
}

// Set implements Cache.Set.
func (c *RedisCache) Set(ctx context.Context, key string, value models.ForecastPayload, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return c.client.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

// Ping checks if redis is reachable. Used for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client connections. Call during shutdown.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
