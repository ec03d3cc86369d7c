package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qtop/internal/domain"
	testingpkg "github.com/aristath/qtop/internal/testing"
)

func TestRepository_SaveAndGet(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	rec := domain.StockRecommendation{
		Symbol:          "AAPL",
		Type:            domain.RecommendationBuy,
		ConfidenceScore: 0.8,
		AnalysisSummary: "Technical analysis suggests buying AAPL",
		Indicators:      domain.IndicatorValues{Price: 190, SMA20: 185, SMA50: 180, RSI: 55},
	}

	saved, err := repo.Save(ctx, rec)
	require.NoError(t, err)
	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err)

	stored, err := repo.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, saved, *stored)
	assert.Equal(t, domain.RecommendationBuy, stored.Type)
	assert.Equal(t, 0.8, stored.ConfidenceScore)
	assert.Equal(t, rec.Indicators, stored.Indicators)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestRepository_SaveOverwritesPerSymbol(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	first, err := repo.Save(ctx, domain.StockRecommendation{
		Symbol: "MSFT", Type: domain.RecommendationBuy, ConfidenceScore: 0.8, AnalysisSummary: "first",
	})
	require.NoError(t, err)

	second, err := repo.Save(ctx, domain.StockRecommendation{
		Symbol: "MSFT", Type: domain.RecommendationSell, ConfidenceScore: 0.8, AnalysisSummary: "second",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.RecommendationSell, all[0].Type)
	assert.Equal(t, "second", all[0].AnalysisSummary)
}

func TestRepository_GetBySymbolMissing(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	rec, err := repo.GetBySymbol(context.Background(), "NONE")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRepository_SaveReturnsStoredTimestamps(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)
	first, err := repo.Save(ctx, domain.StockRecommendation{
		Symbol: "JNJ", Type: domain.RecommendationHold, ConfidenceScore: 0.6,
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, created, first.CreatedAt)
	assert.Equal(t, created, first.UpdatedAt)

	// The caller's CreatedAt is ignored on overwrite
	updated := created.Add(24 * time.Hour)
	second, err := repo.Save(ctx, domain.StockRecommendation{
		Symbol: "JNJ", Type: domain.RecommendationBuy, ConfidenceScore: 0.8,
		CreatedAt: updated, UpdatedAt: updated,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, created, second.CreatedAt)
	assert.Equal(t, updated, second.UpdatedAt)

	stored, err := repo.GetBySymbol(ctx, "JNJ")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, second, *stored)
}

func TestRepository_GetBySymbolReportsQueryErrors(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	_, err := db.Conn().Exec("DROP TABLE stock_recommendations")
	require.NoError(t, err)

	rec, err := repo.GetBySymbol(context.Background(), "AAPL")
	assert.Error(t, err)
	assert.Nil(t, rec)
}
