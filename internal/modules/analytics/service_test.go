package analytics

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qtop/internal/config"
	"github.com/aristath/qtop/internal/domain"
	"github.com/aristath/qtop/internal/modules/history"
	"github.com/aristath/qtop/internal/modules/optimization"
	"github.com/aristath/qtop/internal/modules/recommendation"
	testingpkg "github.com/aristath/qtop/internal/testing"
)

type stubStocks struct {
	stocks []domain.Stock
	err    error
}

func (s *stubStocks) GetAll(ctx context.Context) ([]domain.Stock, error) {
	return s.stocks, s.err
}

func (s *stubStocks) GetBySymbol(ctx context.Context, symbol string) (*domain.Stock, error) {
	for _, st := range s.stocks {
		if st.Symbol == symbol {
			st := st
			return &st, nil
		}
	}
	return nil, nil
}

type stubHoldings map[int64][]domain.Holding

func (s stubHoldings) GetByPortfolio(ctx context.Context, portfolioID int64) ([]domain.Holding, error) {
	h, ok := s[portfolioID]
	if !ok {
		return nil, errors.New("portfolio not found")
	}
	return h, nil
}

type capRecorder struct {
	mu   sync.Mutex
	caps map[string]float64
}

func (c *capRecorder) UpdateMarketCap(ctx context.Context, symbol string, marketCap float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.caps == nil {
		c.caps = make(map[string]float64)
	}
	c.caps[symbol] = marketCap
	return nil
}

type fixture struct {
	provider *testingpkg.MockPriceProvider
	sink     *testingpkg.MockRecommendationSink
	stocks   *stubStocks
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := testingpkg.NewMockPriceProvider()
	sink := testingpkg.NewMockRecommendationSink()
	stocks := &stubStocks{stocks: testingpkg.NewStockFixtures()}

	settings := config.DefaultAnalysisSettings()
	settings.FetchTimeout = time.Second

	fetcher := history.NewFetcher(provider, history.NewMemoryCache(), history.Config{
		MaxConcurrency: settings.MaxConcurrentFetches,
		FetchTimeout:   settings.FetchTimeout,
		CacheTTL:       settings.CacheTTL,
	}, zerolog.Nop())

	svc := NewService(fetcher, stubHoldings{
		1: {{Symbol: "A", Sector: "Technology", Quantity: 10, AverageCost: 100}},
	}, stocks, sink, provider, settings, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	return &fixture{provider: provider, sink: sink, stocks: stocks, service: svc}
}

func TestAnalyzePortfolio_Valuation(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.NewPriceSeries("A", 140, 145, 150),
		testingpkg.LinearSeries("^GSPC", 3, 4000, 10),
	)

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "A", Sector: "Technology", Quantity: 10, AverageCost: 100},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1500.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 1000.0, snap.TotalCost, 1e-9)
	assert.InDelta(t, 500.0, snap.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 50.0, snap.UnrealizedPnLPct, 1e-9)
	assert.InDelta(t, 50.0, snap.PerformanceMetrics.TotalReturnPct, 1e-9)
	assert.Empty(t, snap.ExcludedSymbols)
	assert.Equal(t, map[string]float64{"Technology": 100}, snap.SectorAllocation)
	assert.Contains(t, snap.AssetRisk, "A")
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), snap.GeneratedAt)
}

func TestAnalyzePortfolio_UnavailablePriceIsExcluded(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.NewPriceSeries("A", 140, 145, 150),
		testingpkg.LinearSeries("^GSPC", 3, 4000, 10),
	)
	f.provider.SetError("B", errors.New("connection reset"))

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "A", Sector: "Technology", Quantity: 10, AverageCost: 100},
		{Symbol: "B", Sector: "Energy", Quantity: 5, AverageCost: 50},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1500.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 1000.0, snap.TotalCost, 1e-9)
	assert.Equal(t, []string{"B"}, snap.ExcludedSymbols)
	require.NotEmpty(t, snap.Notes)
	assert.Contains(t, snap.Notes[0], "B excluded")
	assert.NotContains(t, snap.SectorAllocation, "Energy")
	assert.NotContains(t, snap.AssetRisk, "B")
}

func TestAnalyzePortfolio_SingleUnpricedHolding(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(testingpkg.LinearSeries("^GSPC", 3, 4000, 10))

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "GONE", Quantity: 10, AverageCost: 100},
	})
	require.NoError(t, err)

	assert.Zero(t, snap.TotalValue)
	assert.Zero(t, snap.TotalCost)
	assert.Zero(t, snap.UnrealizedPnLPct)
	assert.Equal(t, []string{"GONE"}, snap.ExcludedSymbols)
	assert.Empty(t, snap.SectorAllocation)
	assert.Equal(t, domain.DefaultRiskMetrics(), snap.RiskMetrics)
	assert.Empty(t, snap.Recommendations)
}

func TestAnalyzePortfolio_MissingBenchmarkDefaultsBeta(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(testingpkg.OscillatingSeries("A", 60, 100, 0.001, 0.01, 0))

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "A", Sector: "Technology", Quantity: 10, AverageCost: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, snap.RiskMetrics.Beta)
	assert.Greater(t, snap.RiskMetrics.Volatility, 0.0)
	assert.Contains(t, snap.Notes, "Benchmark ^GSPC unavailable; beta defaults to 1.0")
}

func TestAnalyzePortfolio_IdenticalAssets(t *testing.T) {
	f := newFixture(t)
	a := testingpkg.OscillatingSeries("A", 80, 100, 0.0005, 0.015, 0.3)
	b := a
	b.Symbol = "B"
	bench := a
	bench.Symbol = "^GSPC"
	f.provider.SetSeries(a, b, bench)

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "A", Sector: "Technology", Quantity: 3, AverageCost: 90},
		{Symbol: "B", Sector: "Healthcare", Quantity: 7, AverageCost: 90},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, snap.RiskMetrics.Beta, 1e-9)
	assert.InDelta(t, snap.AssetRisk["A"].Volatility, snap.RiskMetrics.Volatility, 1e-12)
	assert.InDelta(t, snap.AssetRisk["B"].Volatility, snap.RiskMetrics.Volatility, 1e-12)
}

func TestAnalyzePortfolio_Advisories(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.NewPriceSeries("A", 70, 70, 70),
		testingpkg.NewPriceSeries("^GSPC", 4000, 4000, 4000),
	)

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "A", Sector: "Technology", Quantity: 10, AverageCost: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		recommendation.AdviceSectorConcentration,
		recommendation.LossAdvice("A"),
	}, snap.Recommendations)
}

func TestAnalyzePortfolio_FillsSectorFromUniverse(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.NewPriceSeries("AAPL", 100, 100),
		testingpkg.NewPriceSeries("JNJ", 100, 100),
	)

	snap, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "AAPL", Quantity: 1, AverageCost: 100},
		{Symbol: "JNJ", Quantity: 3, AverageCost: 100},
	})
	require.NoError(t, err)

	assert.InDelta(t, 25.0, snap.SectorAllocation["Technology"], 1e-9)
	assert.InDelta(t, 75.0, snap.SectorAllocation["Healthcare"], 1e-9)
}

func TestAnalyzePortfolio_RejectsNegativeQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.AnalyzePortfolio(context.Background(), []domain.Holding{
		{Symbol: "A", Quantity: -1, AverageCost: 100},
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestAnalyzePortfolio_Empty(t *testing.T) {
	f := newFixture(t)

	snap, err := f.service.AnalyzePortfolio(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalValue)
	assert.Empty(t, snap.Recommendations)
	assert.Zero(t, f.provider.Calls("^GSPC"))
}

func TestAnalyzePortfolioByID(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(testingpkg.NewPriceSeries("A", 140, 150))

	snap, err := f.service.AnalyzePortfolioByID(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, snap.TotalValue, 1e-9)

	_, err = f.service.AnalyzePortfolioByID(context.Background(), 99)
	assert.Error(t, err)
}

func TestGenerateStockRecommendation(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(testingpkg.LinearSeries("AAPL", 60, 100, 1))

	rec, err := f.service.GenerateStockRecommendation(context.Background(), " aapl ")
	require.NoError(t, err)

	// Steady gains put RSI at 100, which blocks a buy
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, domain.RecommendationHold, rec.Type)
	assert.Equal(t, 0.6, rec.ConfidenceScore)
	assert.Equal(t, "rec-AAPL", rec.ID)
	assert.False(t, rec.UpdatedAt.IsZero())

	saved, ok := f.sink.Saved("AAPL")
	require.True(t, ok)
	assert.Equal(t, rec.Type, saved.Type)
}

func TestGenerateStockRecommendation_Errors(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(testingpkg.LinearSeries("SHORT", 10, 100, 1))

	_, err := f.service.GenerateStockRecommendation(context.Background(), "SHORT")
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))

	_, err = f.service.GenerateStockRecommendation(context.Background(), "MISSING")
	assert.True(t, errors.Is(err, domain.ErrSymbolNotFound))

	_, err = f.service.GenerateStockRecommendation(context.Background(), "  ")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	assert.Zero(t, f.sink.Count())
}

func TestRecommendPortfolio(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.OscillatingSeries("AAPL", 120, 100, 0.001, 0.02, 0),
		testingpkg.OscillatingSeries("MSFT", 120, 100, 0.0008, 0.01, 1.1),
		testingpkg.OscillatingSeries("JNJ", 120, 100, 0.0003, 0.005, 2.3),
		testingpkg.NewPriceSeries("TINY", 100),
	)
	f.provider.SetMarketCap("JNJ", 4.0e11)
	store := &capRecorder{}
	f.service.SetMarketCapStore(store)

	universe := append(testingpkg.NewStockFixtures(),
		domain.Stock{Symbol: "TINY"},
		domain.Stock{Symbol: "DELISTED"},
	)

	rec, err := f.service.RecommendPortfolio(context.Background(), universe)
	require.NoError(t, err)

	assert.Equal(t, string(optimization.StrategyMinVolatility), rec.Strategy)
	assert.Equal(t, []string{"DELISTED", "TINY"}, rec.ExcludedSymbols)
	assert.Contains(t, rec.AnalysisSummary, portfolioSummary)
	assert.Contains(t, rec.AnalysisSummary, "excluded: DELISTED, TINY")

	var sum float64
	for _, w := range rec.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, rec.RiskScore, 0.0)
	assert.False(t, math.IsNaN(rec.ExpectedReturn))

	require.Len(t, rec.Allocations, 3)
	caps := map[string]*float64{}
	for _, a := range rec.Allocations {
		caps[a.Symbol] = a.MarketCap
		assert.Equal(t, rec.Weights[a.Symbol], a.Weight)
	}
	require.NotNil(t, caps["AAPL"])
	assert.Equal(t, 2.8e12, *caps["AAPL"])
	require.NotNil(t, caps["JNJ"])
	assert.Equal(t, 4.0e11, *caps["JNJ"])
	assert.Equal(t, map[string]float64{"JNJ": 4.0e11}, store.caps)

	// Low-volatility JNJ should carry the largest min-variance weight
	assert.Greater(t, rec.Weights["JNJ"], rec.Weights["AAPL"])
}

func TestRecommendPortfolio_Deterministic(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.OscillatingSeries("AAPL", 90, 100, 0.001, 0.02, 0),
		testingpkg.OscillatingSeries("MSFT", 90, 100, 0.0008, 0.01, 1.1),
		testingpkg.OscillatingSeries("JNJ", 90, 100, 0.0003, 0.005, 2.3),
	)

	first, err := f.service.RecommendPortfolioWithStrategy(context.Background(), testingpkg.NewStockFixtures(), optimization.StrategyMaxSharpe)
	require.NoError(t, err)
	second, err := f.service.RecommendPortfolioWithStrategy(context.Background(), testingpkg.NewStockFixtures(), optimization.StrategyMaxSharpe)
	require.NoError(t, err)

	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, "max_sharpe", first.Strategy)
}

func TestRecommendPortfolio_NoUsableData(t *testing.T) {
	f := newFixture(t)
	f.provider.SetError("AAPL", domain.ErrProviderUnavailable)

	_, err := f.service.RecommendPortfolio(context.Background(), testingpkg.NewStockFixtures())
	assert.True(t, errors.Is(err, domain.ErrNoUsableData))

	_, err = f.service.RecommendPortfolio(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrNoUsableData))
}

func TestRecommendUniverse(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.OscillatingSeries("AAPL", 40, 100, 0.001, 0.02, 0),
		testingpkg.OscillatingSeries("MSFT", 40, 100, 0.0008, 0.01, 1.1),
	)

	rec, err := f.service.RecommendUniverse(context.Background(), optimization.StrategyMinVolatility)
	require.NoError(t, err)
	assert.Equal(t, []string{"JNJ"}, rec.ExcludedSymbols)
	assert.Len(t, rec.Weights, 2)
}

func TestRefreshUniverseRecommendations(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(
		testingpkg.LinearSeries("AAPL", 60, 100, 1),
		testingpkg.LinearSeries("MSFT", 10, 100, 1),
	)

	report, err := f.service.RefreshUniverseRecommendations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, report.Generated)
	assert.Equal(t, []string{"JNJ", "MSFT"}, report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, f.sink.Count())
}

func TestRefreshUniverseRecommendations_SinkFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.SetSeries(testingpkg.LinearSeries("AAPL", 60, 100, 1))
	f.sink.SetError(errors.New("disk full"))

	report, err := f.service.RefreshUniverseRecommendations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, report.Failed)
	assert.Empty(t, report.Generated)
}

func TestRefreshUniverseRecommendations_UniverseError(t *testing.T) {
	f := newFixture(t)
	f.stocks.err = errors.New("db closed")

	_, err := f.service.RefreshUniverseRecommendations(context.Background())
	assert.Error(t, err)
}

func TestRecommendStock_IsPure(t *testing.T) {
	series := testingpkg.LinearSeries("AAPL", 60, 200, -1)

	rec, err := RecommendStock("aapl", series)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Empty(t, rec.ID)
	assert.Equal(t, domain.RecommendationHold, rec.Type)
}

func shifted(series domain.PriceSeries, days int) domain.PriceSeries {
	points := make([]domain.PricePoint, len(series.Points))
	for i, p := range series.Points {
		points[i] = domain.PricePoint{Date: p.Date.AddDate(0, 0, days), Close: p.Close}
	}
	return domain.PriceSeries{Symbol: series.Symbol, Points: points}
}

func TestRecommendPortfolio_ExcludesNonOverlappingHistory(t *testing.T) {
	ctx := context.Background()
	aapl := testingpkg.OscillatingSeries("AAPL", 120, 100, 0.001, 0.02, 0)
	msft := testingpkg.OscillatingSeries("MSFT", 120, 100, 0.0008, 0.01, 1.1)

	base := newFixture(t)
	base.provider.SetSeries(aapl, msft)
	want, err := base.service.RecommendPortfolioWithStrategy(ctx,
		[]domain.Stock{{Symbol: "AAPL"}, {Symbol: "MSFT"}}, optimization.StrategyMinVolatility)
	require.NoError(t, err)

	f := newFixture(t)
	f.provider.SetSeries(
		aapl,
		msft,
		testingpkg.NewPriceSeries("SHORTY", 100, 101, 99, 102),
		shifted(testingpkg.OscillatingSeries("LATE", 120, 50, 0.002, 0.03, 0.5), 200),
	)

	rec, err := f.service.RecommendPortfolioWithStrategy(ctx, []domain.Stock{
		{Symbol: "AAPL"}, {Symbol: "MSFT"}, {Symbol: "SHORTY"}, {Symbol: "LATE"},
	}, optimization.StrategyMinVolatility)
	require.NoError(t, err)

	assert.Equal(t, []string{"LATE", "SHORTY"}, rec.ExcludedSymbols)
	assert.Contains(t, rec.AnalysisSummary, "excluded: LATE, SHORTY")
	require.Len(t, rec.Weights, 2)
	assert.InDelta(t, want.Weights["AAPL"], rec.Weights["AAPL"], 1e-9)
	assert.InDelta(t, want.Weights["MSFT"], rec.Weights["MSFT"], 1e-9)
	assert.InDelta(t, want.RiskScore, rec.RiskScore, 1e-12)
	assert.Len(t, rec.Allocations, 2)
}

func TestAnalyzePortfolio_LeavesShortHistoryOutOfPortfolioRisk(t *testing.T) {
	ctx := context.Background()
	a := testingpkg.OscillatingSeries("A", 120, 100, 0.001, 0.03, 0)
	bench := testingpkg.OscillatingSeries("^GSPC", 120, 4000, 0.0005, 0.01, 0.4)
	holdingA := domain.Holding{Symbol: "A", Sector: "Technology", Quantity: 10, AverageCost: 100}

	base := newFixture(t)
	base.provider.SetSeries(a, bench)
	want, err := base.service.AnalyzePortfolio(ctx, []domain.Holding{holdingA})
	require.NoError(t, err)
	require.Contains(t, want.Recommendations, recommendation.AdviceHighVolatility)

	f := newFixture(t)
	f.provider.SetSeries(
		a,
		bench,
		testingpkg.NewPriceSeries("SHORTY", 100, 101, 99, 102),
		shifted(testingpkg.OscillatingSeries("LATE", 120, 50, 0.002, 0.01, 0.5), 200),
	)

	snap, err := f.service.AnalyzePortfolio(ctx, []domain.Holding{
		holdingA,
		{Symbol: "SHORTY", Sector: "Energy", Quantity: 1, AverageCost: 100},
		{Symbol: "LATE", Sector: "Energy", Quantity: 1, AverageCost: 50},
	})
	require.NoError(t, err)

	assert.InDelta(t, want.RiskMetrics.Volatility, snap.RiskMetrics.Volatility, 1e-12)
	assert.InDelta(t, want.RiskMetrics.SharpeRatio, snap.RiskMetrics.SharpeRatio, 1e-9)
	assert.InDelta(t, want.RiskMetrics.Beta, snap.RiskMetrics.Beta, 1e-12)
	assert.Contains(t, snap.Recommendations, recommendation.AdviceHighVolatility)

	assert.Empty(t, snap.ExcludedSymbols)
	assert.Contains(t, snap.Notes, "LATE left out of portfolio risk: too little history overlapping the other holdings")
	assert.Contains(t, snap.Notes, "SHORTY left out of portfolio risk: too little history overlapping the other holdings")
	assert.Contains(t, snap.AssetRisk, "SHORTY")
	assert.Contains(t, snap.AssetRisk, "LATE")
}

func TestNewService_FillsUnusableSettings(t *testing.T) {
	provider := testingpkg.NewMockPriceProvider()
	provider.SetSeries(
		testingpkg.OscillatingSeries("AAPL", 60, 100, 0.001, 0.02, 0),
		testingpkg.OscillatingSeries("JNJ", 60, 100, 0.0003, 0.005, 2.3),
	)
	provider.SetMarketCap("JNJ", 4.0e11)

	settings := config.DefaultAnalysisSettings()
	settings.MaxConcurrentFetches = 0
	settings.FetchTimeout = 0
	settings.MinOverlapObservations = 0

	fetcher := history.NewFetcher(provider, nil, history.Config{}, zerolog.Nop())
	svc := NewService(fetcher, nil, nil, nil, provider, settings, zerolog.Nop())

	got := svc.Settings()
	assert.Equal(t, 4, got.MaxConcurrentFetches)
	assert.Equal(t, 10*time.Second, got.FetchTimeout)
	assert.Equal(t, 20, got.MinOverlapObservations)

	done := make(chan struct{})
	var rec *domain.PortfolioRecommendation
	var err error
	go func() {
		defer close(done)
		rec, err = svc.RecommendPortfolio(context.Background(), []domain.Stock{{Symbol: "AAPL"}, {Symbol: "JNJ"}})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("market cap lookups never ran")
	}
	require.NoError(t, err)
	require.Len(t, rec.Allocations, 2)
	for _, a := range rec.Allocations {
		if a.Symbol == "JNJ" {
			require.NotNil(t, a.MarketCap)
			assert.Equal(t, 4.0e11, *a.MarketCap)
		}
	}
}
