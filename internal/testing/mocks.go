package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/qtop/internal/domain"
)

// MockPriceProvider is an in-memory PriceHistoryProvider and MarketCapProvider
type MockPriceProvider struct {
	mu         sync.Mutex
	series     map[string]domain.PriceSeries
	marketCaps map[string]float64
	errs       map[string]error
	delay      time.Duration
	calls      map[string]int
	inFlight   int
	maxFlight  int
}

// NewMockPriceProvider creates a new mock price provider
func NewMockPriceProvider() *MockPriceProvider {
	return &MockPriceProvider{
		series:     make(map[string]domain.PriceSeries),
		marketCaps: make(map[string]float64),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

// SetSeries registers the history returned for a symbol
func (m *MockPriceProvider) SetSeries(series ...domain.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range series {
		m.series[s.Symbol] = s
	}
}

// SetMarketCap registers a market capitalisation
func (m *MockPriceProvider) SetMarketCap(symbol string, marketCap float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketCaps[symbol] = marketCap
}

// SetError makes every fetch of symbol fail with err
func (m *MockPriceProvider) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// SetDelay makes every fetch block for d or until the context is done
func (m *MockPriceProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times symbol was fetched
func (m *MockPriceProvider) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// MaxInFlight returns the highest number of concurrent fetches observed
func (m *MockPriceProvider) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

// FetchHistory implements domain.PriceHistoryProvider
func (m *MockPriceProvider) FetchHistory(ctx context.Context, symbol string, period time.Duration) (domain.PriceSeries, error) {
	m.mu.Lock()
	m.calls[symbol]++
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	delay := m.delay
	series, ok := m.series[symbol]
	err := m.errs[symbol]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.PriceSeries{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctx.Err())
		}
	}

	if err != nil {
		return domain.PriceSeries{}, err
	}
	if !ok {
		return domain.PriceSeries{}, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	return series, nil
}

// FetchMarketCap implements domain.MarketCapProvider
func (m *MockPriceProvider) FetchMarketCap(ctx context.Context, symbol string) (*float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.marketCaps[symbol]; ok {
		return &v, nil
	}
	return nil, nil
}

// MockRecommendationSink records saved recommendations
type MockRecommendationSink struct {
	mu    sync.Mutex
	saved map[string]domain.StockRecommendation
	err   error
}

// NewMockRecommendationSink creates a new mock sink
func NewMockRecommendationSink() *MockRecommendationSink {
	return &MockRecommendationSink{saved: make(map[string]domain.StockRecommendation)}
}

// SetError makes every Save fail
func (m *MockRecommendationSink) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Save implements domain.RecommendationSink. An overwrite keeps the first ID and CreatedAt.
func (m *MockRecommendationSink) Save(ctx context.Context, rec domain.StockRecommendation) (domain.StockRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.StockRecommendation{}, m.err
	}
	if prev, ok := m.saved[rec.Symbol]; ok {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	}
	if rec.ID == "" {
		rec.ID = "rec-" + rec.Symbol
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	m.saved[rec.Symbol] = rec
	return rec, nil
}

// Saved returns the last recommendation saved for symbol
func (m *MockRecommendationSink) Saved(symbol string) (domain.StockRecommendation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.saved[symbol]
	return rec, ok
}

// Count returns the number of symbols with a saved recommendation
func (m *MockRecommendationSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
