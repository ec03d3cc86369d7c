package domain

import (
	"context"
	"time"
)

// PriceHistoryProvider returns daily closing prices for a symbol.
// Errors wrap ErrSymbolNotFound or ErrProviderUnavailable.
type PriceHistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string, period time.Duration) (PriceSeries, error)
}

// MarketCapProvider returns the market capitalisation of a symbol.
// A nil value with a nil error means the figure is unavailable.
type MarketCapProvider interface {
	FetchMarketCap(ctx context.Context, symbol string) (*float64, error)
}

// HoldingsReader gives read-only access to stored portfolio holdings
type HoldingsReader interface {
	GetByPortfolio(ctx context.Context, portfolioID int64) ([]Holding, error)
}

// StockReader gives read-only access to the stock universe
type StockReader interface {
	GetAll(ctx context.Context) ([]Stock, error)
	GetBySymbol(ctx context.Context, symbol string) (*Stock, error)
}

// RecommendationSink persists stock recommendations (create or overwrite per symbol).
// Save returns the record as stored, with its ID and timestamps.
type RecommendationSink interface {
	Save(ctx context.Context, rec StockRecommendation) (StockRecommendation, error)
}
