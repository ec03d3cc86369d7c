package recommendation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/database"
	"github.com/aristath/qtop/internal/domain"
)

// Repository stores the current recommendation of each symbol.
// Saving a symbol again overwrites its recommendation and keeps the original ID.
type Repository struct {
	db  *sql.DB // analytics.db - stock_recommendations
	log zerolog.Logger
}

// NewRepository creates a new recommendation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "stock_recommendation").Logger(),
	}
}

const recommendationColumns = `id, symbol, recommendation_type, confidence_score, analysis_summary,
	price, sma_20, sma_50, rsi, created_at, updated_at`

// Save creates or overwrites the recommendation for rec.Symbol and returns the stored row.
// An overwrite keeps the original ID and created_at; updated_at is rec.UpdatedAt, or now when unset.
func (r *Repository) Save(ctx context.Context, rec domain.StockRecommendation) (domain.StockRecommendation, error) {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	now := updatedAt.Unix()

	stored := rec
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var id string
		var createdAt int64
		err := tx.QueryRowContext(ctx,
			"SELECT id, created_at FROM stock_recommendations WHERE symbol = ?", rec.Symbol,
		).Scan(&id, &createdAt)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			id = uuid.New().String()
			createdAt = now
			_, err = tx.ExecContext(ctx, `
				INSERT INTO stock_recommendations
				(id, symbol, recommendation_type, confidence_score, analysis_summary,
				 price, sma_20, sma_50, rsi, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				id,
				rec.Symbol,
				string(rec.Type),
				rec.ConfidenceScore,
				rec.AnalysisSummary,
				rec.Indicators.Price,
				rec.Indicators.SMA20,
				rec.Indicators.SMA50,
				rec.Indicators.RSI,
				createdAt,
				now,
			)
		case err != nil:
			return fmt.Errorf("failed to look up existing recommendation: %w", err)
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE stock_recommendations SET
					recommendation_type = ?,
					confidence_score = ?,
					analysis_summary = ?,
					price = ?,
					sma_20 = ?,
					sma_50 = ?,
					rsi = ?,
					updated_at = ?
				WHERE id = ?
			`,
				string(rec.Type),
				rec.ConfidenceScore,
				rec.AnalysisSummary,
				rec.Indicators.Price,
				rec.Indicators.SMA20,
				rec.Indicators.SMA50,
				rec.Indicators.RSI,
				now,
				id,
			)
		}
		if err != nil {
			return err
		}

		stored.ID = id
		stored.CreatedAt = time.Unix(createdAt, 0).UTC()
		stored.UpdatedAt = time.Unix(now, 0).UTC()
		return nil
	})
	if err != nil {
		return domain.StockRecommendation{}, fmt.Errorf("failed to save recommendation for %s: %w", rec.Symbol, err)
	}

	r.log.Debug().
		Str("symbol", stored.Symbol).
		Str("type", string(stored.Type)).
		Str("id", stored.ID).
		Msg("Stored recommendation")

	return stored, nil
}

// GetBySymbol returns the current recommendation for symbol, nil when none exists
func (r *Repository) GetBySymbol(ctx context.Context, symbol string) (*domain.StockRecommendation, error) {
	rec, err := scanRecommendation(r.db.QueryRowContext(ctx,
		"SELECT "+recommendationColumns+" FROM stock_recommendations WHERE symbol = ?", symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation for %s: %w", symbol, err)
	}
	return &rec, nil
}

// List returns all current recommendations, most recently updated first
func (r *Repository) List(ctx context.Context) ([]domain.StockRecommendation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+recommendationColumns+" FROM stock_recommendations ORDER BY updated_at DESC, symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []domain.StockRecommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}

	return recs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecommendation(row rowScanner) (domain.StockRecommendation, error) {
	var rec domain.StockRecommendation
	var recType string
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.ID,
		&rec.Symbol,
		&recType,
		&rec.ConfidenceScore,
		&rec.AnalysisSummary,
		&rec.Indicators.Price,
		&rec.Indicators.SMA20,
		&rec.Indicators.SMA50,
		&rec.Indicators.RSI,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.Type = domain.RecommendationType(recType)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}
