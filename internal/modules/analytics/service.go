// Package analytics exposes the analysis entry points: portfolio snapshots,
// single-stock recommendations and optimized universe allocations.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/qtop/internal/config"
	"github.com/aristath/qtop/internal/domain"
	"github.com/aristath/qtop/internal/modules/history"
	"github.com/aristath/qtop/internal/modules/optimization"
	"github.com/aristath/qtop/internal/modules/portfolio"
	"github.com/aristath/qtop/internal/modules/recommendation"
	"github.com/aristath/qtop/internal/modules/risk"
	"github.com/aristath/qtop/internal/modules/universe"
	"github.com/aristath/qtop/pkg/formulas"
)

const portfolioSummary = "Portfolio optimized for risk-adjusted returns using Modern Portfolio Theory"

// HistorySource fetches price histories. Implemented by *history.Fetcher.
type HistorySource interface {
	Fetch(ctx context.Context, symbol string, period time.Duration) (domain.PriceSeries, error)
	FetchAll(ctx context.Context, symbols []string, period time.Duration) *history.Result
}

// MarketCapStore persists market caps discovered during a portfolio recommendation
type MarketCapStore interface {
	UpdateMarketCap(ctx context.Context, symbol string, marketCap float64) error
}

// Service runs analyses against the configured providers and stores
type Service struct {
	histories HistorySource
	holdings  domain.HoldingsReader
	stocks    domain.StockReader
	sink      domain.RecommendationSink
	caps      domain.MarketCapProvider
	capStore  MarketCapStore
	risk      *risk.Engine
	optimizer *optimization.MVOptimizer
	settings  config.AnalysisSettings
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new analytics service.
// holdings, stocks, sink and caps may be nil when the matching entry points are unused.
func NewService(
	histories HistorySource,
	holdings domain.HoldingsReader,
	stocks domain.StockReader,
	sink domain.RecommendationSink,
	caps domain.MarketCapProvider,
	settings config.AnalysisSettings,
	log zerolog.Logger,
) *Service {
	settings = withDefaults(settings)
	return &Service{
		histories: histories,
		holdings:  holdings,
		stocks:    stocks,
		sink:      sink,
		caps:      caps,
		risk:      risk.NewEngine(settings.RiskFreeRate, log),
		optimizer: optimization.NewMVOptimizer(settings.RiskFreeRate, log),
		settings:  settings,
		now:       time.Now,
		log:       log.With().Str("service", "analytics").Logger(),
	}
}

// withDefaults replaces settings the service cannot run with by their defaults
func withDefaults(settings config.AnalysisSettings) config.AnalysisSettings {
	d := config.DefaultAnalysisSettings()
	if settings.MaxConcurrentFetches < 1 {
		settings.MaxConcurrentFetches = d.MaxConcurrentFetches
	}
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = d.FetchTimeout
	}
	if settings.MinOverlapObservations < 2 {
		settings.MinOverlapObservations = d.MinOverlapObservations
	}
	if settings.LookbackDays < 2 {
		settings.LookbackDays = d.LookbackDays
	}
	if settings.Benchmark == "" {
		settings.Benchmark = d.Benchmark
	}
	return settings
}

// SetMarketCapStore enables writing fetched market caps back to the stock universe
func (s *Service) SetMarketCapStore(store MarketCapStore) {
	s.capStore = store
}

// Settings returns the settings the service was built with
func (s *Service) Settings() config.AnalysisSettings {
	return s.settings
}

// AnalyzePortfolioByID loads a stored portfolio's holdings and analyzes them
func (s *Service) AnalyzePortfolioByID(ctx context.Context, portfolioID int64) (*domain.PortfolioSnapshot, error) {
	if s.holdings == nil {
		return nil, fmt.Errorf("holdings reader not configured")
	}

	holdings, err := s.holdings.GetByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings for portfolio %d: %w", portfolioID, err)
	}

	return s.AnalyzePortfolio(ctx, holdings)
}

// AnalyzePortfolio values holdings at their latest close and derives risk, sector
// exposure and advisories.
//
// Symbols whose history cannot be fetched are excluded and listed in the snapshot;
// the analysis itself always completes for valid input.
func (s *Service) AnalyzePortfolio(ctx context.Context, holdings []domain.Holding) (*domain.PortfolioSnapshot, error) {
	for _, h := range holdings {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}

	snapshot := &domain.PortfolioSnapshot{
		GeneratedAt:      s.now().UTC(),
		SectorAllocation: map[string]float64{},
		AssetRisk:        map[string]domain.RiskMetrics{},
		Recommendations:  []string{},
		ExcludedSymbols:  []string{},
		Notes:            []string{},
		RiskMetrics:      domain.DefaultRiskMetrics(),
	}
	if len(holdings) == 0 {
		return snapshot, nil
	}

	holdings = s.withSectors(ctx, holdings)
	symbols := uniqueSymbols(holdings)

	fetched := s.histories.FetchAll(ctx, append(symbols, s.settings.Benchmark), s.settings.Lookback())

	prices := make(map[string]float64, len(symbols))
	assetReturns := make(map[string]domain.ReturnSeries, len(symbols))
	for _, symbol := range symbols {
		series, ok := fetched.Series[symbol]
		if !ok {
			continue
		}
		if last, ok := series.Last(); ok {
			prices[symbol] = last.Close
		}
		assetReturns[symbol] = formulas.CollectReturns(series)
	}

	valuation := portfolio.ValuePortfolio(holdings, prices)
	snapshot.TotalValue = valuation.MarketValue
	snapshot.TotalCost = valuation.CostBasis
	snapshot.UnrealizedPnL = valuation.UnrealizedPnL
	snapshot.UnrealizedPnLPct = valuation.UnrealizedPnLPct
	snapshot.PerformanceMetrics = domain.PerformanceMetrics{
		TotalReturnPct:   valuation.UnrealizedPnLPct,
		UnrealizedPnLPct: valuation.UnrealizedPnLPct,
		CostBasis:        valuation.CostBasis,
		MarketValue:      valuation.MarketValue,
	}
	snapshot.SectorAllocation = portfolio.SectorAllocation(holdings, prices)

	excluded := make(map[string]bool)
	for _, symbol := range valuation.Unpriced {
		if excluded[symbol] {
			continue
		}
		excluded[symbol] = true
		snapshot.ExcludedSymbols = append(snapshot.ExcludedSymbols, symbol)
		snapshot.Notes = append(snapshot.Notes, exclusionNote(symbol, fetched.Failed[symbol]))
	}

	benchmark, ok := fetched.Series[s.settings.Benchmark]
	var benchmarkReturns domain.ReturnSeries
	if ok {
		benchmarkReturns = formulas.CollectReturns(benchmark)
	} else {
		s.log.Warn().
			Err(fetched.Failed[s.settings.Benchmark]).
			Str("benchmark", s.settings.Benchmark).
			Msg("Benchmark history unavailable, beta defaults to 1.0")
		snapshot.Notes = append(snapshot.Notes,
			fmt.Sprintf("Benchmark %s unavailable; beta defaults to 1.0", s.settings.Benchmark))
	}

	for symbol, returns := range assetReturns {
		if excluded[symbol] {
			delete(assetReturns, symbol)
			continue
		}
		snapshot.AssetRisk[symbol] = s.risk.AssetMetrics(returns, benchmarkReturns)
	}

	_, short := risk.SelectOverlapping(assetReturns, s.settings.MinOverlapObservations)
	for _, symbol := range short {
		s.log.Warn().
			Str("symbol", symbol).
			Int("returns", assetReturns[symbol].Len()).
			Msg("History overlaps too little with other holdings, leaving symbol out of portfolio risk")
		snapshot.Notes = append(snapshot.Notes, fmt.Sprintf(
			"%s left out of portfolio risk: too little history overlapping the other holdings", symbol))
		delete(assetReturns, symbol)
	}
	snapshot.RiskMetrics = s.risk.PortfolioMetrics(
		assetReturns,
		portfolio.MarketValues(holdings, prices),
		benchmarkReturns,
	)

	snapshot.Recommendations = recommendation.Advise(recommendation.AdvisoryInput{
		Holdings:         holdings,
		Prices:           prices,
		SectorAllocation: snapshot.SectorAllocation,
		Risk:             snapshot.RiskMetrics,
	}, s.thresholds())

	s.log.Info().
		Int("holdings", len(holdings)).
		Int("excluded", len(snapshot.ExcludedSymbols)).
		Float64("total_value", snapshot.TotalValue).
		Float64("volatility", snapshot.RiskMetrics.Volatility).
		Msg("Portfolio analyzed")

	return snapshot, nil
}

// RecommendStock classifies one symbol from a history the caller already holds
func RecommendStock(symbol string, series domain.PriceSeries) (domain.StockRecommendation, error) {
	return recommendation.Classify(universe.NormalizeSymbol(symbol), series)
}

// GenerateStockRecommendation fetches the lookback history for symbol, classifies it
// and stores the result, replacing any earlier recommendation for the symbol.
func (s *Service) GenerateStockRecommendation(ctx context.Context, symbol string) (*domain.StockRecommendation, error) {
	symbol = universe.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidInput)
	}

	series, err := s.histories.Fetch(ctx, symbol, s.settings.Lookback())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	rec, err := RecommendStock(symbol, series)
	if err != nil {
		return nil, err
	}

	if err := s.store(ctx, &rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("type", string(rec.Type)).
		Float64("confidence", rec.ConfidenceScore).
		Msg("Generated stock recommendation")

	return &rec, nil
}

func (s *Service) store(ctx context.Context, rec *domain.StockRecommendation) error {
	now := s.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if s.sink == nil {
		return nil
	}

	stored, err := s.sink.Save(ctx, *rec)
	if err != nil {
		return fmt.Errorf("failed to store recommendation for %s: %w", rec.Symbol, err)
	}
	*rec = stored
	return nil
}

// RecommendPortfolio computes a target allocation over universe with the configured strategy
func (s *Service) RecommendPortfolio(ctx context.Context, stocks []domain.Stock) (*domain.PortfolioRecommendation, error) {
	strategy, err := optimization.ParseStrategy(s.settings.OptimizerStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return s.RecommendPortfolioWithStrategy(ctx, stocks, strategy)
}

// RecommendPortfolioWithStrategy is RecommendPortfolio with an explicit objective.
// Symbols without at least two daily returns are excluded; when none is left the
// error wraps domain.ErrNoUsableData.
func (s *Service) RecommendPortfolioWithStrategy(
	ctx context.Context,
	stocks []domain.Stock,
	strategy optimization.Strategy,
) (*domain.PortfolioRecommendation, error) {
	bySymbol := make(map[string]domain.Stock, len(stocks))
	symbols := make([]string, 0, len(stocks))
	for _, st := range stocks {
		symbol := universe.NormalizeSymbol(st.Symbol)
		if symbol == "" {
			continue
		}
		if _, dup := bySymbol[symbol]; dup {
			continue
		}
		st.Symbol = symbol
		bySymbol[symbol] = st
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: empty universe", domain.ErrNoUsableData)
	}

	fetched := s.histories.FetchAll(ctx, symbols, s.settings.Lookback())

	excluded := fetched.FailedSymbols()
	candidates := make(map[string]domain.ReturnSeries, len(symbols))
	for _, symbol := range fetched.Symbols() {
		returns := formulas.CollectReturns(fetched.Series[symbol])
		if returns.Len() < 2 {
			s.log.Warn().
				Str("symbol", symbol).
				Int("returns", returns.Len()).
				Msg("Not enough history for optimization, excluding symbol")
			excluded = append(excluded, symbol)
			continue
		}
		candidates[symbol] = returns
	}

	if len(candidates) == 0 {
		sort.Strings(excluded)
		return nil, fmt.Errorf("%w: none of %d symbols has enough history", domain.ErrNoUsableData, len(symbols))
	}

	usable, short := risk.SelectOverlapping(candidates, s.settings.MinOverlapObservations)
	for _, symbol := range short {
		s.log.Warn().
			Str("symbol", symbol).
			Int("returns", candidates[symbol].Len()).
			Msg("History overlaps too little with the rest of the universe, excluding symbol")
		excluded = append(excluded, symbol)
	}
	sort.Strings(excluded)

	series := make([]domain.ReturnSeries, len(usable))
	for i, symbol := range usable {
		series[i] = candidates[symbol]
	}
	_, matrix := risk.AlignReturns(series...)
	result, err := s.optimizer.Optimize(usable, matrix, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to optimize portfolio: %w", err)
	}

	caps := s.marketCaps(ctx, usable, bySymbol)

	allocations := make([]domain.AllocationEntry, 0, len(usable))
	for _, symbol := range usable {
		allocations = append(allocations, domain.AllocationEntry{
			Symbol:    symbol,
			Weight:    result.Weights[symbol],
			MarketCap: caps[symbol],
		})
	}

	summary := fmt.Sprintf("%s (%s, %s)", portfolioSummary, result.Strategy, result.Method)
	if len(excluded) > 0 {
		summary += fmt.Sprintf("; excluded: %s", strings.Join(excluded, ", "))
	}

	s.log.Info().
		Int("assets", len(usable)).
		Int("excluded", len(excluded)).
		Str("strategy", string(result.Strategy)).
		Str("method", result.Method).
		Msg("Portfolio recommendation generated")

	return &domain.PortfolioRecommendation{
		Weights:         result.Weights,
		Allocations:     allocations,
		ExcludedSymbols: excluded,
		Strategy:        string(result.Strategy),
		AnalysisSummary: summary,
		RiskScore:       result.Risk,
		ExpectedReturn:  result.ExpectedReturn,
	}, nil
}

// RecommendUniverse runs RecommendPortfolio over every stored stock
func (s *Service) RecommendUniverse(ctx context.Context, strategy optimization.Strategy) (*domain.PortfolioRecommendation, error) {
	if s.stocks == nil {
		return nil, fmt.Errorf("stock reader not configured")
	}
	stocks, err := s.stocks.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock universe: %w", err)
	}
	return s.RecommendPortfolioWithStrategy(ctx, stocks, strategy)
}

// marketCaps returns stored caps, asking the provider for missing ones.
// A missing cap never fails the recommendation.
func (s *Service) marketCaps(ctx context.Context, symbols []string, stocks map[string]domain.Stock) map[string]*float64 {
	caps := make(map[string]*float64, len(symbols))
	var missing []string
	for _, symbol := range symbols {
		if c := stocks[symbol].MarketCap; c != nil {
			caps[symbol] = c
		} else {
			missing = append(missing, symbol)
		}
	}
	if s.caps == nil || len(missing) == 0 {
		return caps
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.MaxConcurrentFetches)
	for _, symbol := range missing {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, s.settings.FetchTimeout)
			defer cancel()

			c, err := s.caps.FetchMarketCap(fctx, symbol)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Market cap unavailable")
				return nil
			}
			if c == nil {
				return nil
			}

			mu.Lock()
			caps[symbol] = c
			mu.Unlock()

			if s.capStore != nil {
				if err := s.capStore.UpdateMarketCap(gctx, symbol, *c); err != nil {
					s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store market cap")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return caps
}

// RefreshReport summarises a universe-wide recommendation refresh
type RefreshReport struct {
	Generated []string `json:"generated"`
	Skipped   []string `json:"skipped"` // history unavailable or too short
	Failed    []string `json:"failed"`  // could not be stored
}

// RefreshUniverseRecommendations regenerates the stored recommendation of every stock.
// Histories are fetched with the bounded fan-out; per-symbol problems are reported, not returned.
func (s *Service) RefreshUniverseRecommendations(ctx context.Context) (*RefreshReport, error) {
	if s.stocks == nil {
		return nil, fmt.Errorf("stock reader not configured")
	}

	stocks, err := s.stocks.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock universe: %w", err)
	}

	symbols := make([]string, 0, len(stocks))
	for _, st := range stocks {
		symbols = append(symbols, universe.NormalizeSymbol(st.Symbol))
	}

	report := &RefreshReport{Generated: []string{}, Skipped: []string{}, Failed: []string{}}
	fetched := s.histories.FetchAll(ctx, symbols, s.settings.Lookback())
	report.Skipped = append(report.Skipped, fetched.FailedSymbols()...)

	for _, symbol := range fetched.Symbols() {
		rec, err := RecommendStock(symbol, fetched.Series[symbol])
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientHistory) {
				s.log.Debug().Err(err).Str("symbol", symbol).Msg("Skipping recommendation")
			} else {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to classify")
			}
			report.Skipped = append(report.Skipped, symbol)
			continue
		}

		if err := s.store(ctx, &rec); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store recommendation")
			report.Failed = append(report.Failed, symbol)
			continue
		}
		report.Generated = append(report.Generated, symbol)
	}
	sort.Strings(report.Skipped)

	s.log.Info().
		Int("generated", len(report.Generated)).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failed)).
		Msg("Universe recommendations refreshed")

	return report, nil
}

func (s *Service) thresholds() recommendation.Thresholds {
	return recommendation.Thresholds{
		SectorConcentrationPct: s.settings.SectorConcentrationLimit,
		MaxVolatility:          s.settings.HighVolatilityThreshold,
		MaxBeta:                s.settings.HighBetaThreshold,
		LossRatio:              s.settings.LossReviewRatio,
	}
}

// withSectors fills missing sectors from the stock universe
func (s *Service) withSectors(ctx context.Context, holdings []domain.Holding) []domain.Holding {
	out := make([]domain.Holding, len(holdings))
	copy(out, holdings)
	if s.stocks == nil {
		return out
	}

	for i := range out {
		if out[i].Sector != "" {
			continue
		}
		stock, err := s.stocks.GetBySymbol(ctx, out[i].Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", out[i].Symbol).Msg("Failed to look up sector")
			continue
		}
		if stock != nil {
			out[i].Sector = stock.Sector
		}
	}
	return out
}

func uniqueSymbols(holdings []domain.Holding) []string {
	seen := make(map[string]bool, len(holdings))
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if !seen[h.Symbol] {
			seen[h.Symbol] = true
			symbols = append(symbols, h.Symbol)
		}
	}
	return symbols
}

func exclusionNote(symbol string, cause error) string {
	if cause == nil {
		return fmt.Sprintf("%s excluded: no current price", symbol)
	}
	return fmt.Sprintf("%s excluded: %v", symbol, cause)
}
