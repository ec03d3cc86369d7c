// Package history fetches daily price histories concurrently and caches them.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/qtop/internal/domain"
)

// DefaultTTL is how long a fetched history is reused
const DefaultTTL = 15 * time.Minute

// Cache stores price histories under a key with an expiry
type Cache interface {
	// Get returns the cached series and true when a fresh entry exists
	Get(ctx context.Context, key string) (domain.PriceSeries, bool, error)
	Set(ctx context.Context, key string, series domain.PriceSeries, ttl time.Duration) error
	// DeleteExpired drops stale entries and reports how many were removed
	DeleteExpired(ctx context.Context) (int64, error)
}

// CacheKey identifies a history by symbol and lookback period
func CacheKey(symbol string, period time.Duration) string {
	return fmt.Sprintf("%s|%d", symbol, int64(period/time.Hour))
}
