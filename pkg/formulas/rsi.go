package formulas

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/qtop/internal/domain"
)

// DefaultRSIPeriod is the conventional RSI lookback
const DefaultRSIPeriod = 14

// RSISeries calculates the Relative Strength Index for every close.
//
// Deltas are split into gains and losses and each is averaged with a trailing simple
// mean of period deltas: RS = meanGain/meanLoss, RSI = 100 - 100/(1+RS).
// A window without losing days is exactly 100. The first period values are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 || len(closes) < period+1 {
		return out
	}

	n := len(closes) - 1
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 0; i < n; i++ {
		delta := closes[i+1] - closes[i]
		if delta > 0 {
			gains[i] = delta
		} else if delta < 0 {
			losses[i] = -delta
		}
	}

	avgGain := trailingMean(gains, period)
	avgLoss := trailingMean(losses, period)

	// Count gaining/losing days in the window so the boundary cases are exact
	// instead of depending on the rounding of a running sum.
	gainDays, lossDays := 0, 0
	for i := 0; i < n; i++ {
		if gains[i] > 0 {
			gainDays++
		}
		if losses[i] > 0 {
			lossDays++
		}
		if i >= period {
			if gains[i-period] > 0 {
				gainDays--
			}
			if losses[i-period] > 0 {
				lossDays--
			}
		}
		if i < period-1 {
			continue
		}

		var rsi float64
		switch {
		case lossDays == 0:
			rsi = 100
		case gainDays == 0:
			rsi = 0
		default:
			rs := avgGain[i] / avgLoss[i]
			rsi = 100 - 100/(1+rs)
		}
		out[i+1] = math.Max(0, math.Min(100, rsi))
	}

	return out
}

// CalculateRSI returns the most recent RSI value
func CalculateRSI(closes []float64, period int) (float64, error) {
	if period < 1 || len(closes) < period+1 {
		return 0, insufficient(period+1, len(closes))
	}
	rsi := RSISeries(closes, period)
	return rsi[len(rsi)-1], nil
}

func trailingMean(values []float64, period int) []float64 {
	if period == 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	return talib.Sma(values, period)
}

func insufficient(need, have int) error {
	return domain.NewInsufficientHistory("", need, have)
}
