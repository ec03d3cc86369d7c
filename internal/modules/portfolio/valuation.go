// Package portfolio values holdings at current prices and reads them from storage.
package portfolio

import (
	"sort"

	"github.com/aristath/qtop/internal/domain"
)

// UnknownSector groups holdings whose stock has no sector
const UnknownSector = "Unknown"

// Valuation is the monetary state of a set of holdings at current prices
type Valuation struct {
	Unpriced         []string `json:"unpriced"`
	MarketValue      float64  `json:"market_value"`
	CostBasis        float64  `json:"cost_basis"`
	UnrealizedPnL    float64  `json:"unrealized_pnl"`
	UnrealizedPnLPct float64  `json:"unrealized_pnl_pct"`
}

// ValuePortfolio sums market value, cost basis and unrealized P&L.
//
// A holding contributes only when prices has a positive entry for it; otherwise it is
// listed in Unpriced and adds nothing, so one missing price never fails the whole valuation.
func ValuePortfolio(holdings []domain.Holding, prices map[string]float64) Valuation {
	v := Valuation{Unpriced: []string{}}

	for _, h := range holdings {
		price := prices[h.Symbol]
		if price <= 0 {
			v.Unpriced = append(v.Unpriced, h.Symbol)
			continue
		}
		v.MarketValue += h.Quantity * price
		v.CostBasis += h.Quantity * h.AverageCost
		v.UnrealizedPnL += h.Quantity * (price - h.AverageCost)
	}

	if v.CostBasis > 0 {
		v.UnrealizedPnLPct = v.UnrealizedPnL / v.CostBasis * 100
	}

	sort.Strings(v.Unpriced)
	return v
}

// SectorAllocation returns each sector's share of market value in percent.
// The result is empty when total market value is 0.
func SectorAllocation(holdings []domain.Holding, prices map[string]float64) map[string]float64 {
	bySector := make(map[string]float64)
	var total float64

	for _, h := range holdings {
		price := prices[h.Symbol]
		if price <= 0 {
			continue
		}
		value := h.Quantity * price
		if value <= 0 {
			continue
		}
		sector := h.Sector
		if sector == "" {
			sector = UnknownSector
		}
		bySector[sector] += value
		total += value
	}

	allocation := make(map[string]float64, len(bySector))
	if total <= 0 {
		return allocation
	}

	for sector, value := range bySector {
		allocation[sector] = value / total * 100
	}
	return allocation
}

// MarketValues returns qty*price per priced holding, keyed by symbol.
// Used as value weights for portfolio risk.
func MarketValues(holdings []domain.Holding, prices map[string]float64) map[string]float64 {
	values := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		if price := prices[h.Symbol]; price > 0 {
			values[h.Symbol] += h.Quantity * price
		}
	}
	return values
}
