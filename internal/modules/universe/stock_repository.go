// Package universe provides access to the stock universe the engine analyses.
package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/domain"
)

const stocksColumns = "symbol, name, sector, industry, market_cap"

// StockRepository handles stock universe database operations
type StockRepository struct {
	db  *sql.DB // analytics.db - stocks
	log zerolog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repository", "stock").Logger(),
	}
}

// NormalizeSymbol upper-cases and trims a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetAll returns every stock ordered by symbol
func (r *StockRepository) GetAll(ctx context.Context) ([]domain.Stock, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+stocksColumns+" FROM stocks ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	stocks := []domain.Stock{}
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}

	return stocks, nil
}

// GetBySymbol returns a stock by symbol, nil when it does not exist
func (r *StockRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Stock, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+stocksColumns+" FROM stocks WHERE symbol = ?", NormalizeSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to query stock by symbol: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Stock not found
	}

	stock, err := scanStock(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stock: %w", err)
	}

	return &stock, nil
}

// Upsert creates or replaces a stock record
func (r *StockRepository) Upsert(ctx context.Context, stock domain.Stock) error {
	stock.Symbol = NormalizeSymbol(stock.Symbol)
	if stock.Symbol == "" {
		return fmt.Errorf("stock symbol cannot be empty")
	}

	var marketCap sql.NullFloat64
	if stock.MarketCap != nil {
		marketCap = sql.NullFloat64{Float64: *stock.MarketCap, Valid: true}
	}

	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stocks (symbol, name, sector, industry, market_cap, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			industry = excluded.industry,
			market_cap = excluded.market_cap,
			updated_at = excluded.updated_at`,
		stock.Symbol, stock.Name, stock.Sector, stock.Industry, marketCap, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", stock.Symbol, err)
	}

	return nil
}

// UpdateMarketCap stores a freshly fetched market capitalisation
func (r *StockRepository) UpdateMarketCap(ctx context.Context, symbol string, marketCap float64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE stocks SET market_cap = ?, updated_at = ? WHERE symbol = ?",
		marketCap, time.Now().Unix(), NormalizeSymbol(symbol),
	)
	if err != nil {
		return fmt.Errorf("failed to update market cap for %s: %w", symbol, err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		r.log.Debug().Str("symbol", symbol).Msg("Market cap update matched no stock")
	}

	return nil
}

func scanStock(rows *sql.Rows) (domain.Stock, error) {
	var stock domain.Stock
	var marketCap sql.NullFloat64

	if err := rows.Scan(&stock.Symbol, &stock.Name, &stock.Sector, &stock.Industry, &marketCap); err != nil {
		return stock, err
	}

	if marketCap.Valid {
		v := marketCap.Float64
		stock.MarketCap = &v
	}

	return stock, nil
}
