package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/qtop/internal/domain"
)

// Defaults for the fan-out
const (
	DefaultMaxConcurrency = 4
	DefaultFetchTimeout   = 10 * time.Second
)

// Config tunes the fetcher
type Config struct {
	MaxConcurrency int           // concurrent provider calls
	FetchTimeout   time.Duration // per symbol
	CacheTTL       time.Duration
}

// Result is the outcome of a multi-symbol fetch.
// Every requested symbol appears in exactly one of the two maps.
type Result struct {
	Series map[string]domain.PriceSeries
	Failed map[string]error
}

// Symbols returns the symbols that produced a usable history, sorted
func (r *Result) Symbols() []string {
	symbols := make([]string, 0, len(r.Series))
	for s := range r.Series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// FailedSymbols returns the symbols that failed, sorted
func (r *Result) FailedSymbols() []string {
	symbols := make([]string, 0, len(r.Failed))
	for s := range r.Failed {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Fetcher retrieves histories through a provider with bounded concurrency,
// a per-symbol timeout and a TTL cache in front.
type Fetcher struct {
	provider domain.PriceHistoryProvider
	cache    Cache
	cfg      Config
	log      zerolog.Logger
}

// NewFetcher creates a new fetcher. cache may be nil to disable caching.
func NewFetcher(provider domain.PriceHistoryProvider, cache Cache, cfg Config, log zerolog.Logger) *Fetcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultTTL
	}

	return &Fetcher{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		log:      log.With().Str("component", "history_fetcher").Logger(),
	}
}

// Fetch returns one symbol's history, from cache when fresh.
// Provider failures are wrapped so errors.Is(err, domain.ErrSymbolUnavailable) holds.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, period time.Duration) (domain.PriceSeries, error) {
	key := CacheKey(symbol, period)

	if f.cache != nil {
		series, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("History cache read failed, fetching from provider")
		} else if ok {
			return series, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	series, err := f.provider.FetchHistory(fetchCtx, symbol, period)
	if err != nil {
		if !errors.Is(err, domain.ErrSymbolUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return domain.PriceSeries{}, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	if series.Len() == 0 {
		return domain.PriceSeries{}, fmt.Errorf("%w: no price history for %s", domain.ErrSymbolNotFound, symbol)
	}
	if err := series.Validate(); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, series, f.cfg.CacheTTL); err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache history")
		}
	}

	return series, nil
}

// FetchAll fetches every symbol concurrently, at most MaxConcurrency at a time.
// A failing or slow symbol lands in Result.Failed and never aborts the others.
// FetchAll waits for every fetch before returning.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []string, period time.Duration) *Result {
	result := &Result{
		Series: make(map[string]domain.PriceSeries, len(symbols)),
		Failed: make(map[string]error),
	}

	unique := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if s != "" && !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}

	sem := semaphore.NewWeighted(int64(f.cfg.MaxConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	start := time.Now()
	for _, symbol := range unique {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled before this symbol got a slot
			mu.Lock()
			result.Failed[symbol] = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer sem.Release(1)

			series, err := f.Fetch(ctx, symbol, period)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.log.Warn().Err(err).Str("symbol", symbol).Msg("Excluding symbol without usable history")
				result.Failed[symbol] = err
				return
			}
			result.Series[symbol] = series
		}(symbol)
	}

	wg.Wait()

	f.log.Debug().
		Int("requested", len(unique)).
		Int("fetched", len(result.Series)).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("History fan-out completed")

	return result
}
