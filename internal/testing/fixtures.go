package testing

import (
	"math"
	"time"

	"github.com/aristath/qtop/internal/domain"
)

// FixtureStart is the first date of every generated price series
var FixtureStart = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

// NewPriceSeries builds a daily series from closes starting at FixtureStart
func NewPriceSeries(symbol string, closes ...float64) domain.PriceSeries {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{Date: FixtureStart.AddDate(0, 0, i), Close: c}
	}
	return domain.PriceSeries{Symbol: symbol, Points: points}
}

// LinearSeries returns n closes moving from start by step each day
func LinearSeries(symbol string, n int, start, step float64) domain.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return NewPriceSeries(symbol, closes...)
}

// OscillatingSeries returns n closes that compound growth with a deterministic sine wobble.
// Different phases give series that are correlated but not identical.
func OscillatingSeries(symbol string, n int, start, drift, amplitude, phase float64) domain.PriceSeries {
	closes := make([]float64, n)
	price := start
	for i := range closes {
		r := drift + amplitude*math.Sin(float64(i)*0.7+phase)
		price *= 1 + r
		closes[i] = price
	}
	return NewPriceSeries(symbol, closes...)
}

// NewStockFixtures returns a small technology and healthcare universe
func NewStockFixtures() []domain.Stock {
	capAAPL := 2.8e12
	capMSFT := 3.1e12
	return []domain.Stock{
		{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics", MarketCap: &capAAPL},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Sector: "Technology", Industry: "Software", MarketCap: &capMSFT},
		{Symbol: "JNJ", Name: "Johnson & Johnson", Sector: "Healthcare", Industry: "Pharmaceuticals"},
	}
}

// NewHoldingFixtures returns holdings matching NewStockFixtures
func NewHoldingFixtures() []domain.Holding {
	return []domain.Holding{
		{Symbol: "AAPL", Sector: "Technology", Quantity: 10, AverageCost: 150},
		{Symbol: "MSFT", Sector: "Technology", Quantity: 5, AverageCost: 300},
		{Symbol: "JNJ", Sector: "Healthcare", Quantity: 20, AverageCost: 160},
	}
}
