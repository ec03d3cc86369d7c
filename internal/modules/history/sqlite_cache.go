package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/qtop/internal/domain"
)

// SQLiteCache persists price histories in cache.db so they survive restarts.
// Series are stored as msgpack blobs with an absolute unix expiry.
type SQLiteCache struct {
	db  *sql.DB // cache.db - price_history_cache
	log zerolog.Logger
}

// NewSQLiteCache creates a new SQLite-backed history cache
func NewSQLiteCache(db *sql.DB, log zerolog.Logger) *SQLiteCache {
	return &SQLiteCache{
		db:  db,
		log: log.With().Str("repository", "price_history_cache").Logger(),
	}
}

// Get returns data only if expires_at > now
func (c *SQLiteCache) Get(ctx context.Context, key string) (domain.PriceSeries, bool, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT data FROM price_history_cache WHERE cache_key = ? AND expires_at > ?",
		key, time.Now().Unix(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceSeries{}, false, nil
	}
	if err != nil {
		return domain.PriceSeries{}, false, fmt.Errorf("failed to read cached history %s: %w", key, err)
	}

	var series domain.PriceSeries
	if err := msgpack.Unmarshal(blob, &series); err != nil {
		// A corrupt row is treated as a miss; the next Set overwrites it
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached history")
		return domain.PriceSeries{}, false, nil
	}

	return series, true, nil
}

// Set saves series with expiration = now + ttl, replacing any existing entry
func (c *SQLiteCache) Set(ctx context.Context, key string, series domain.PriceSeries, ttl time.Duration) error {
	blob, err := msgpack.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to marshal history %s: %w", key, err)
	}

	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO price_history_cache (cache_key, symbol, data, expires_at) VALUES (?, ?, ?, ?)",
		key, series.Symbol, blob, time.Now().Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store history %s: %w", key, err)
	}

	return nil
}

// DeleteExpired removes all rows where expires_at <= now
func (c *SQLiteCache) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM price_history_cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired histories: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
