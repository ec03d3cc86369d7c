package portfolio

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/domain"
)

// HoldingsRepository reads portfolio holdings with the sector of each stock joined in.
// Holdings are owned by the surrounding application; this repository never writes them.
type HoldingsRepository struct {
	db  *sql.DB // analytics.db - portfolio_holdings, stocks
	log zerolog.Logger
}

// NewHoldingsRepository creates a new holdings repository
func NewHoldingsRepository(db *sql.DB, log zerolog.Logger) *HoldingsRepository {
	return &HoldingsRepository{
		db:  db,
		log: log.With().Str("repository", "holdings").Logger(),
	}
}

// GetByPortfolio returns every holding of a portfolio ordered by symbol.
// A portfolio without holdings yields an empty slice.
func (r *HoldingsRepository) GetByPortfolio(ctx context.Context, portfolioID int64) ([]domain.Holding, error) {
	query := `SELECT h.symbol, h.quantity, h.average_cost, COALESCE(s.sector, '')
		FROM portfolio_holdings h
		LEFT JOIN stocks s ON s.symbol = h.symbol
		WHERE h.portfolio_id = ?
		ORDER BY h.symbol`

	rows, err := r.db.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []domain.Holding{}
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.AverageCost, &h.Sector); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		if err := h.Validate(); err != nil {
			r.log.Warn().Err(err).Int64("portfolio_id", portfolioID).Msg("Skipping invalid holding")
			continue
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	r.log.Debug().Int64("portfolio_id", portfolioID).Int("count", len(holdings)).Msg("Loaded holdings")
	return holdings, nil
}
