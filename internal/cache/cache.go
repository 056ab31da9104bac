package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dlindgren/weather-forecast-service/internal/models"
)

// Cache is the ephemeral forecast store. Get returns the payload if present
// and not expired; an entry past its TTL reads identically to an absent one.
// Set stores the payload atomically with the given TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.ForecastPayload, bool, error)
	Set(ctx context.Context, key string, value models.ForecastPayload, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex // guards data
	data map[string]cacheEntry
}

// cacheEntry stores a cached payload with its expiration timestamp.
type cacheEntry struct {
	value     models.ForecastPayload
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached payload for the key if present and not expired.
// Returns (payload, true, nil) on hit, (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ForecastPayload, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.ForecastPayload{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.ForecastPayload{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores the payload with the specified TTL. The entry expires after TTL
// elapses and is removed on the next Get.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ForecastPayload, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
