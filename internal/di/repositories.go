package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/modules/portfolio"
	"github.com/aristath/qtop/internal/modules/recommendation"
	"github.com/aristath/qtop/internal/modules/universe"
)

// InitializeRepositories creates all repositories on top of the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.AnalyticsDB == nil {
		return fmt.Errorf("analytics database not initialized")
	}

	conn := container.AnalyticsDB.Conn()
	container.StockRepo = universe.NewStockRepository(conn, log)
	container.HoldingsRepo = portfolio.NewHoldingsRepository(conn, log)
	container.RecommendationRepo = recommendation.NewRepository(conn, log)

	return nil
}
