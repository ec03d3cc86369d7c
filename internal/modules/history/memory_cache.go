package history

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/qtop/internal/domain"
)

type memoryEntry struct {
	series    domain.PriceSeries
	expiresAt time.Time
}

// MemoryCache is an in-process Cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a fresh entry
func (c *MemoryCache) Get(_ context.Context, key string) (domain.PriceSeries, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return domain.PriceSeries{}, false, nil
	}
	return entry.series, true, nil
}

// Set stores series until now+ttl
func (c *MemoryCache) Set(_ context.Context, key string, series domain.PriceSeries, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{series: series, expiresAt: c.now().Add(ttl)}
	return nil
}

// DeleteExpired removes stale entries
func (c *MemoryCache) DeleteExpired(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var deleted int64
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of stored entries, fresh or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
