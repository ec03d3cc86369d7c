// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/qtop/internal/clients/yahoo"
	"github.com/aristath/qtop/internal/database"
	"github.com/aristath/qtop/internal/modules/analytics"
	"github.com/aristath/qtop/internal/modules/history"
	"github.com/aristath/qtop/internal/modules/portfolio"
	"github.com/aristath/qtop/internal/modules/recommendation"
	"github.com/aristath/qtop/internal/modules/universe"
	"github.com/aristath/qtop/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and is the single source of truth for service instances.
type Container struct {
	// Databases
	AnalyticsDB *database.DB // stocks, holdings, recommendations
	CacheDB     *database.DB // price history cache

	// Clients
	YahooClient *yahoo.Client

	// Repositories
	StockRepo          *universe.StockRepository
	HoldingsRepo       *portfolio.HoldingsRepository
	RecommendationRepo *recommendation.Repository

	// Services
	HistoryCache     history.Cache
	HistoryFetcher   *history.Fetcher
	AnalyticsService *analytics.Service
}

// Close closes every database in the container
func (c *Container) Close() {
	if c.AnalyticsDB != nil {
		_ = c.AnalyticsDB.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
}

// Databases returns the open databases
func (c *Container) Databases() []*database.DB {
	return []*database.DB{c.AnalyticsDB, c.CacheDB}
}

// JobInstances holds the background jobs for scheduling and manual triggering
type JobInstances struct {
	RefreshRecommendations *scheduler.RefreshRecommendationsJob
	HistoryCacheCleanup    *history.CleanupJob
	CheckWALCheckpoints    *scheduler.CheckWALCheckpointsJob
}

// All returns every job
func (j *JobInstances) All() []scheduler.Job {
	return []scheduler.Job{j.RefreshRecommendations, j.HistoryCacheCleanup, j.CheckWALCheckpoints}
}
