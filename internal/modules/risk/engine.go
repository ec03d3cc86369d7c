package risk

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/domain"
	"github.com/aristath/qtop/pkg/formulas"
)

// Engine computes volatility, Sharpe ratio and beta for assets and portfolios
type Engine struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewEngine creates a risk engine. riskFreeRate is annual (0.02 = 2%).
func NewEngine(riskFreeRate float64, log zerolog.Logger) *Engine {
	return &Engine{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "risk_engine").Logger(),
	}
}

// AssetMetrics computes risk figures for a single return series.
// An empty benchmark yields the default beta of 1.0.
func (e *Engine) AssetMetrics(returns, benchmark domain.ReturnSeries) domain.RiskMetrics {
	if returns.Len() == 0 {
		return domain.DefaultRiskMetrics()
	}

	return domain.RiskMetrics{
		Volatility:  formulas.AnnualizedVolatility(returns.Values),
		SharpeRatio: formulas.SharpeRatio(returns.Values, e.riskFreeRate),
		Beta:        Beta(returns, benchmark),
	}
}

// PortfolioMetrics computes risk figures for the weighted combination of assetReturns.
// The figures come from the combined daily return series, so diversification is
// reflected rather than averaged away.
func (e *Engine) PortfolioMetrics(
	assetReturns map[string]domain.ReturnSeries,
	weights map[string]float64,
	benchmark domain.ReturnSeries,
) domain.RiskMetrics {
	usable := make(map[string]domain.ReturnSeries, len(assetReturns))
	for symbol, r := range assetReturns {
		if r.Len() > 0 {
			usable[symbol] = r
		}
	}
	if len(usable) == 0 {
		e.log.Debug().Msg("No asset returns available, using default risk metrics")
		return domain.DefaultRiskMetrics()
	}

	combined := WeightedPortfolioReturns(usable, weights)
	if combined.Len() == 0 {
		e.log.Warn().
			Strs("symbols", sortedKeys(usable)).
			Msg("Asset return series share no dates, using default risk metrics")
		return domain.DefaultRiskMetrics()
	}

	metrics := e.AssetMetrics(combined, benchmark)

	e.log.Debug().
		Int("assets", len(usable)).
		Int("observations", combined.Len()).
		Float64("volatility", metrics.Volatility).
		Float64("sharpe", metrics.SharpeRatio).
		Float64("beta", metrics.Beta).
		Msg("Portfolio risk metrics calculated")

	return metrics
}

func sortedKeys(m map[string]domain.ReturnSeries) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
