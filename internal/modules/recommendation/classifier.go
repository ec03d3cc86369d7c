// Package recommendation turns indicators and portfolio figures into recommendations.
package recommendation

import (
	"fmt"

	"github.com/aristath/qtop/internal/domain"
	"github.com/aristath/qtop/pkg/formulas"
)

const (
	// MinHistoryPoints is the shortest series the classifier accepts (one SMA50 window)
	MinHistoryPoints = 50

	ShortWindow = 20
	LongWindow  = 50

	OverboughtRSI = 70.0
	OversoldRSI   = 30.0

	// Trend agreement scores higher than the neutral fallback
	TrendConfidence   = 0.8
	NeutralConfidence = 0.6
)

// Classify emits a buy/hold/sell signal for one symbol from its daily closes.
//
// buy:  price > SMA20 > SMA50 and RSI < 70
// sell: price < SMA20 < SMA50 and RSI > 30
// hold: anything else
//
// The returned recommendation has no ID or timestamps; those are assigned when it is stored.
func Classify(symbol string, series domain.PriceSeries) (domain.StockRecommendation, error) {
	if series.Len() < MinHistoryPoints {
		return domain.StockRecommendation{}, domain.NewInsufficientHistory(symbol, MinHistoryPoints, series.Len())
	}

	closes := series.Closes()
	price := closes[len(closes)-1]

	sma20, err := formulas.LastSMA(closes, ShortWindow)
	if err != nil {
		return domain.StockRecommendation{}, fmt.Errorf("failed to calculate SMA%d for %s: %w", ShortWindow, symbol, err)
	}
	sma50, err := formulas.LastSMA(closes, LongWindow)
	if err != nil {
		return domain.StockRecommendation{}, fmt.Errorf("failed to calculate SMA%d for %s: %w", LongWindow, symbol, err)
	}
	rsi, err := formulas.CalculateRSI(closes, formulas.DefaultRSIPeriod)
	if err != nil {
		return domain.StockRecommendation{}, fmt.Errorf("failed to calculate RSI for %s: %w", symbol, err)
	}

	recType, confidence := decide(price, sma20, sma50, rsi)
	indicators := domain.IndicatorValues{Price: price, SMA20: sma20, SMA50: sma50, RSI: rsi}

	return domain.StockRecommendation{
		Symbol:          symbol,
		Type:            recType,
		ConfidenceScore: confidence,
		AnalysisSummary: summarize(symbol, recType, indicators),
		Indicators:      indicators,
	}, nil
}

func decide(price, sma20, sma50, rsi float64) (domain.RecommendationType, float64) {
	switch {
	case price > sma20 && sma20 > sma50 && rsi < OverboughtRSI:
		return domain.RecommendationBuy, TrendConfidence
	case price < sma20 && sma20 < sma50 && rsi > OversoldRSI:
		return domain.RecommendationSell, TrendConfidence
	default:
		return domain.RecommendationHold, NeutralConfidence
	}
}

func summarize(symbol string, recType domain.RecommendationType, ind domain.IndicatorValues) string {
	verb := map[domain.RecommendationType]string{
		domain.RecommendationBuy:  "buying",
		domain.RecommendationHold: "holding",
		domain.RecommendationSell: "selling",
	}[recType]

	return fmt.Sprintf(
		"Technical analysis suggests %s %s (price %.2f, SMA20 %.2f, SMA50 %.2f, RSI %.1f)",
		verb, symbol, ind.Price, ind.SMA20, ind.SMA50, ind.RSI,
	)
}
