package recommendation

import (
	"fmt"
	"sort"

	"github.com/aristath/qtop/internal/domain"
)

// Advisory messages, emitted in this order
const (
	AdviceSectorConcentration = "Consider reducing exposure to concentrated sectors for better diversification"
	AdviceHighVolatility      = "Portfolio volatility is high. Consider adding more defensive stocks"
	AdviceHighBeta            = "Portfolio beta is high. Consider adding more defensive positions"
	adviceLossFormat          = "Consider reviewing %s position due to significant loss"
)

// Thresholds configure when advisories fire
type Thresholds struct {
	SectorConcentrationPct float64 // sector share of market value, percent
	MaxVolatility          float64 // annualized
	MaxBeta                float64
	LossRatio              float64 // price below LossRatio*average cost
}

// DefaultThresholds returns the standard advisory thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		SectorConcentrationPct: 50,
		MaxVolatility:          0.20,
		MaxBeta:                1.2,
		LossRatio:              0.8,
	}
}

// AdvisoryInput is the portfolio state advisories are derived from
type AdvisoryInput struct {
	Holdings         []domain.Holding
	Prices           map[string]float64
	SectorAllocation map[string]float64
	Risk             domain.RiskMetrics
}

// Advise returns human-readable advisories in a fixed order: sector concentration,
// volatility, beta, then one loss review per holding in holding order.
// Holdings without a price are never flagged for loss.
func Advise(in AdvisoryInput, th Thresholds) []string {
	advice := []string{}

	sectors := make([]string, 0, len(in.SectorAllocation))
	for sector := range in.SectorAllocation {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	for _, sector := range sectors {
		if in.SectorAllocation[sector] > th.SectorConcentrationPct {
			advice = append(advice, AdviceSectorConcentration)
			break
		}
	}

	if in.Risk.Volatility > th.MaxVolatility {
		advice = append(advice, AdviceHighVolatility)
	}

	if in.Risk.Beta > th.MaxBeta {
		advice = append(advice, AdviceHighBeta)
	}

	for _, h := range in.Holdings {
		price := in.Prices[h.Symbol]
		if price <= 0 || h.AverageCost <= 0 {
			continue
		}
		if price < th.LossRatio*h.AverageCost {
			advice = append(advice, LossAdvice(h.Symbol))
		}
	}

	return advice
}

// LossAdvice is the advisory for a holding trading well below its cost
func LossAdvice(symbol string) string {
	return fmt.Sprintf(adviceLossFormat, symbol)
}
