// Package formulas holds the numerical building blocks of the analytics engine:
// moving averages, RSI, return statistics and risk ratios.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualisation factor for daily data
const TradingDaysPerYear = 252

// ZeroTolerance is the magnitude below which a dispersion figure is treated as zero.
// Constant series produce rounding noise around 1e-18 rather than an exact 0.
const ZeroTolerance = 1e-12

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	sd := stat.StdDev(data, nil)
	if math.IsNaN(sd) || sd < ZeroTolerance {
		return 0
	}
	return sd
}

// Variance calculates the sample variance (n-1 denominator)
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	v := stat.Variance(data, nil)
	if math.IsNaN(v) || v < ZeroTolerance*ZeroTolerance {
		return 0
	}
	return v
}

// Covariance calculates the sample covariance between two equal-length datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	c := stat.Covariance(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}
