package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/clients/yahoo"
	"github.com/aristath/qtop/internal/config"
	"github.com/aristath/qtop/internal/modules/analytics"
	"github.com/aristath/qtop/internal/modules/history"
)

// InitializeServices creates the provider client, the history fetcher and the analytics service
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.StockRepo == nil {
		return fmt.Errorf("repositories not initialized")
	}

	container.YahooClient = yahoo.NewClient(log,
		yahoo.WithBaseURL(cfg.YahooBaseURL),
		yahoo.WithRateLimit(cfg.YahooRateLimit),
	)

	switch cfg.HistoryCache {
	case "memory":
		container.HistoryCache = history.NewMemoryCache()
	default:
		container.HistoryCache = history.NewSQLiteCache(container.CacheDB.Conn(), log)
	}

	settings := cfg.Analysis
	container.HistoryFetcher = history.NewFetcher(container.YahooClient, container.HistoryCache, history.Config{
		MaxConcurrency: settings.MaxConcurrentFetches,
		FetchTimeout:   settings.FetchTimeout,
		CacheTTL:       settings.CacheTTL,
	}, log)

	container.AnalyticsService = analytics.NewService(
		container.HistoryFetcher,
		container.HoldingsRepo,
		container.StockRepo,
		container.RecommendationRepo,
		container.YahooClient,
		settings,
		log,
	)
	container.AnalyticsService.SetMarketCapStore(container.StockRepo)

	log.Info().
		Str("history_cache", cfg.HistoryCache).
		Int("max_concurrency", settings.MaxConcurrentFetches).
		Str("benchmark", settings.Benchmark).
		Msg("Services initialized")

	return nil
}
