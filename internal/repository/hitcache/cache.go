// Package hitcache caches sampling-based hit estimates in Redis/Valkey.
//
// Estimates are expensive (a sample query plus a relational count) and
// stable over short horizons, so a short TTL trades a little staleness for a
// lot of analytical-store load.
package hitcache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"
)

// Cache implements usecase/search.EstimateCache.
type Cache struct {
	client rueidis.Client
	ttlSec int64
}

// New creates a hit-estimate cache with the given TTL in seconds.
func New(client rueidis.Client, ttlSec int64) *Cache {
	if ttlSec <= 0 {
		ttlSec = 240
	}
	return &Cache{client: client, ttlSec: ttlSec}
}

// Get returns the cached estimate for key, ok=false on miss.
func (c *Cache) Get(ctx context.Context, key string) (int, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("hitcache get %s: %w", key, err)
	}
	s, err := resp.ToString()
	if err != nil {
		return 0, false, fmt.Errorf("hitcache get %s: %w", key, err)
	}
	hits, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("hitcache parse %s: %w", key, err)
	}
	return hits, true, nil
}

// Set stores an estimate under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, hits int) error {
	cmd := c.client.B().Set().Key(key).Value(strconv.Itoa(hits)).ExSeconds(c.ttlSec).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("hitcache set %s: %w", key, err)
	}
	return nil
}
