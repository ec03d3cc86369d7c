package portfolio

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/qtop/internal/testing"
)

func TestHoldingsRepository_GetByPortfolio(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()

	_, err := db.Conn().Exec(`
		INSERT INTO stocks (symbol, name, sector) VALUES
			('AAPL', 'Apple Inc.', 'Technology'),
			('JNJ', 'Johnson & Johnson', 'Healthcare');
		INSERT INTO portfolio_holdings (portfolio_id, symbol, quantity, average_cost) VALUES
			(1, 'JNJ', 20, 160),
			(1, 'AAPL', 10, 150),
			(1, 'NEWCO', 5, 12.5),
			(2, 'AAPL', 1, 100);
	`)
	require.NoError(t, err)

	repo := NewHoldingsRepository(db.Conn(), zerolog.Nop())

	holdings, err := repo.GetByPortfolio(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, "Technology", holdings[0].Sector)
	assert.Equal(t, 10.0, holdings[0].Quantity)
	assert.Equal(t, 150.0, holdings[0].AverageCost)

	assert.Equal(t, "JNJ", holdings[1].Symbol)
	assert.Equal(t, "Healthcare", holdings[1].Sector)

	// No stock record: sector left empty
	assert.Equal(t, "NEWCO", holdings[2].Symbol)
	assert.Equal(t, "", holdings[2].Sector)
}

func TestHoldingsRepository_EmptyPortfolio(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	defer cleanup()

	repo := NewHoldingsRepository(db.Conn(), zerolog.Nop())

	holdings, err := repo.GetByPortfolio(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, holdings)
	assert.Empty(t, holdings)
}
