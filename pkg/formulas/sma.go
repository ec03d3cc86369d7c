package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average of closes over window.
// The result has the same length as closes; indices before window-1 are NaN (undefined).
func SMA(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	if window < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	if window == 1 {
		copy(out, closes)
		return out
	}
	if len(closes) < window {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	// go-talib zero-fills the lookback period
	sma := talib.Sma(closes, window)
	copy(out, sma)
	for i := 0; i < window-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// LastSMA returns the most recent moving average value
func LastSMA(closes []float64, window int) (float64, error) {
	if window < 1 || len(closes) < window {
		return 0, insufficient(window, len(closes))
	}
	sma := SMA(closes, window)
	return sma[len(sma)-1], nil
}
