package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/config"
	"github.com/aristath/qtop/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. analytics.db - universe, holdings and stored recommendations
	analyticsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "analytics.db"),
		Profile: database.ProfileStandard,
		Name:    "analytics",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analytics database: %w", err)
	}
	container.AnalyticsDB = analyticsDB

	// 2. cache.db - ephemeral price history cache
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")

	return container, nil
}
