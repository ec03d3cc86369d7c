// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"
)

// RecommendationType is the signal emitted by the single-asset classifier
type RecommendationType string

const (
	RecommendationBuy  RecommendationType = "buy"
	RecommendationHold RecommendationType = "hold"
	RecommendationSell RecommendationType = "sell"
)

// Holding is a position held in a portfolio.
// Sector is joined from the stock record and is only used for allocation.
type Holding struct {
	Symbol      string  `json:"symbol"`
	Sector      string  `json:"sector,omitempty"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
}

// Validate rejects negative quantities and costs
func (h Holding) Validate() error {
	if h.Symbol == "" {
		return fmt.Errorf("holding has no symbol")
	}
	if h.Quantity < 0 {
		return fmt.Errorf("holding %s has negative quantity %f", h.Symbol, h.Quantity)
	}
	if h.AverageCost < 0 {
		return fmt.Errorf("holding %s has negative average cost %f", h.Symbol, h.AverageCost)
	}
	return nil
}

// Stock is a tradable security of the analysed universe
type Stock struct {
	MarketCap *float64 `json:"market_cap,omitempty"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Sector    string   `json:"sector"`
	Industry  string   `json:"industry"`
}

// PricePoint is a single daily close
type PricePoint struct {
	Date  time.Time `json:"date" msgpack:"d"`
	Close float64   `json:"close" msgpack:"c"`
}

// PriceSeries is a time-ordered series of daily closes for one symbol.
// Dates are strictly increasing; market-calendar holes are allowed.
type PriceSeries struct {
	Symbol string       `json:"symbol" msgpack:"s"`
	Points []PricePoint `json:"points" msgpack:"p"`
}

// Len returns the number of points
func (s PriceSeries) Len() int {
	return len(s.Points)
}

// Closes returns the closing prices in date order
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the most recent point, false when the series is empty
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Validate checks that dates are strictly increasing
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("price series %s not strictly increasing at index %d", s.Symbol, i)
		}
	}
	return nil
}

// ReturnSeries holds dated daily returns. Dates[i] is the date of the later close.
type ReturnSeries struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations
func (r ReturnSeries) Len() int {
	return len(r.Values)
}

// RiskMetrics summarises risk for an asset or a portfolio
type RiskMetrics struct {
	Volatility  float64 `json:"volatility"`   // Annualized
	SharpeRatio float64 `json:"sharpe_ratio"` // 0 when volatility is 0
	Beta        float64 `json:"beta"`         // 1.0 when benchmark variance is 0
}

// DefaultRiskMetrics is used when no return data is available
func DefaultRiskMetrics() RiskMetrics {
	return RiskMetrics{Volatility: 0, SharpeRatio: 0, Beta: 1.0}
}

// PerformanceMetrics summarises portfolio performance since entry
type PerformanceMetrics struct {
	TotalReturnPct   float64 `json:"total_return"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	CostBasis        float64 `json:"cost_basis"`
	MarketValue      float64 `json:"market_value"`
}

// PortfolioSnapshot is the derived result of one analysis request.
// It is recomputed on every request and never persisted.
type PortfolioSnapshot struct {
	GeneratedAt        time.Time              `json:"generated_at"`
	SectorAllocation   map[string]float64     `json:"sector_allocation"`
	AssetRisk          map[string]RiskMetrics `json:"asset_risk"`
	Recommendations    []string               `json:"recommendations"`
	ExcludedSymbols    []string               `json:"excluded_symbols"`
	Notes              []string               `json:"notes"`
	RiskMetrics        RiskMetrics            `json:"risk_metrics"`
	PerformanceMetrics PerformanceMetrics     `json:"performance_metrics"`
	TotalValue         float64                `json:"total_value"`
	TotalCost          float64                `json:"total_cost"`
	UnrealizedPnL      float64                `json:"unrealized_pnl"`
	UnrealizedPnLPct   float64                `json:"unrealized_pnl_pct"`
}

// IndicatorValues are the inputs the classifier based its decision on
type IndicatorValues struct {
	Price float64 `json:"price"`
	SMA20 float64 `json:"sma_20"`
	SMA50 float64 `json:"sma_50"`
	RSI   float64 `json:"rsi"`
}

// StockRecommendation is the current technical recommendation for a symbol.
// At most one exists per symbol; regeneration overwrites it.
type StockRecommendation struct {
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	ID              string             `json:"id"`
	Symbol          string             `json:"symbol"`
	Type            RecommendationType `json:"recommendation_type"`
	AnalysisSummary string             `json:"analysis_summary"`
	Indicators      IndicatorValues    `json:"indicators"`
	ConfidenceScore float64            `json:"confidence_score"`
}

// AllocationEntry is one line of a portfolio recommendation
type AllocationEntry struct {
	MarketCap *float64 `json:"market_cap,omitempty"`
	Symbol    string   `json:"symbol"`
	Weight    float64  `json:"weight"`
}

// PortfolioRecommendation is the optimizer's target allocation for a universe
type PortfolioRecommendation struct {
	Weights         map[string]float64 `json:"allocation"`
	Allocations     []AllocationEntry  `json:"stocks"`
	ExcludedSymbols []string           `json:"excluded_symbols"`
	Strategy        string             `json:"strategy"`
	AnalysisSummary string             `json:"analysis_summary"`
	RiskScore       float64            `json:"risk_score"`
	ExpectedReturn  float64            `json:"expected_return"`
}
