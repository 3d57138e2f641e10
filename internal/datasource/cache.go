package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qveris-lab/quantsim/internal/types"
)

// BarCache is a read-mostly cache of bar series shared by concurrent symbol
// runs. Reads take a shared lock; writes take the exclusive lock and install
// a fully-built slice, so a reader observes either the old value or the new
// one, never a partial write.
type BarCache struct {
	mu      sync.RWMutex
	entries map[string][]types.Bar
}

// NewBarCache returns an empty cache.
func NewBarCache() *BarCache {
	return &BarCache{
		entries: make(map[string][]types.Bar),
	}
}

// Get returns the cached series for the key, if present. The returned slice
// must be treated as read-only by callers.
func (c *BarCache) Get(key string) ([]types.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bars, ok := c.entries[key]

	return bars, ok
}

// Put installs a series under the key. The slice is copied before
// publication so the cache owns its storage.
func (c *BarCache) Put(key string, bars []types.Bar) {
	owned := make([]types.Bar, len(bars))
	copy(owned, bars)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = owned
}

// Len returns the number of cached entries.
func (c *BarCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Reset drops all cached entries.
func (c *BarCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]types.Bar)
}

// CachedDataSource decorates a MarketDataSource with a BarCache. It is safe
// for concurrent use by multiple symbol runs.
type CachedDataSource struct {
	inner MarketDataSource
	cache *BarCache
}

// NewCachedDataSource wraps inner with the given cache. A nil cache gets a
// fresh one.
func NewCachedDataSource(inner MarketDataSource, cache *BarCache) *CachedDataSource {
	if cache == nil {
		cache = NewBarCache()
	}

	return &CachedDataSource{
		inner: inner,
		cache: cache,
	}
}

// GetBars implements MarketDataSource.
func (c *CachedDataSource) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	key := cacheKey(symbol, start, end)

	if bars, ok := c.cache.Get(key); ok {
		return bars, nil
	}

	bars, err := c.inner.GetBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	c.cache.Put(key, bars)

	return bars, nil
}

// Close implements MarketDataSource.
func (c *CachedDataSource) Close() error {
	return c.inner.Close()
}

func cacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", symbol, start.Unix(), end.Unix())
}
