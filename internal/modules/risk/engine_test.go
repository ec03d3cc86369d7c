package risk

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/qtop/internal/domain"
	testingpkg "github.com/aristath/qtop/internal/testing"
	"github.com/aristath/qtop/pkg/formulas"
)

func TestEngine_IdenticalAssetsBehaveLikeOne(t *testing.T) {
	engine := NewEngine(0, zerolog.Nop())

	a := formulas.CollectReturns(testingpkg.OscillatingSeries("A", 120, 100, 0.001, 0.02, 0))
	b := formulas.CollectReturns(testingpkg.OscillatingSeries("B", 120, 100, 0.001, 0.02, 0))
	assets := map[string]domain.ReturnSeries{"A": a, "B": b}

	// Benchmark is the pair's own average
	benchmark := WeightedPortfolioReturns(assets, nil)

	portfolio := engine.PortfolioMetrics(assets, map[string]float64{"A": 1, "B": 1}, benchmark)
	single := engine.AssetMetrics(a, benchmark)

	assert.InDelta(t, 1.0, portfolio.Beta, 1e-9)
	assert.InDelta(t, single.Volatility, portfolio.Volatility, 1e-12)
	assert.InDelta(t, single.SharpeRatio, portfolio.SharpeRatio, 1e-9)
}

func TestEngine_DiversificationLowersVolatility(t *testing.T) {
	engine := NewEngine(0, zerolog.Nop())

	a := formulas.CollectReturns(testingpkg.OscillatingSeries("A", 200, 100, 0.0005, 0.02, 0))
	b := formulas.CollectReturns(testingpkg.OscillatingSeries("B", 200, 100, 0.0005, 0.02, 3.14159))
	assets := map[string]domain.ReturnSeries{"A": a, "B": b}

	portfolio := engine.PortfolioMetrics(assets, nil, domain.ReturnSeries{})
	volA := engine.AssetMetrics(a, domain.ReturnSeries{}).Volatility
	volB := engine.AssetMetrics(b, domain.ReturnSeries{}).Volatility

	assert.Less(t, portfolio.Volatility, (volA+volB)/2)
	assert.Equal(t, 1.0, portfolio.Beta)
}

func TestEngine_NoDataReturnsDefaults(t *testing.T) {
	engine := NewEngine(0.02, zerolog.Nop())

	assert.Equal(t, domain.DefaultRiskMetrics(), engine.PortfolioMetrics(nil, nil, domain.ReturnSeries{}))
	assert.Equal(t, domain.DefaultRiskMetrics(), engine.AssetMetrics(domain.ReturnSeries{}, domain.ReturnSeries{}))
}

func TestEngine_SharpeUsesRiskFreeRate(t *testing.T) {
	returns := formulas.CollectReturns(testingpkg.OscillatingSeries("A", 80, 50, 0.001, 0.01, 1))

	withoutRF := NewEngine(0, zerolog.Nop()).AssetMetrics(returns, domain.ReturnSeries{})
	withRF := NewEngine(0.05, zerolog.Nop()).AssetMetrics(returns, domain.ReturnSeries{})

	assert.Greater(t, withoutRF.SharpeRatio, withRF.SharpeRatio)
	assert.GreaterOrEqual(t, withRF.Volatility, 0.0)
}
