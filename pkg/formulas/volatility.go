package formulas

import "math"

// AnnualizedVolatility is the sample standard deviation of daily returns times sqrt(252).
// Always >= 0; 0 when fewer than two returns are available.
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio is (mean*252 - riskFreeRate) / annualized volatility.
// riskFreeRate is annual. Returns 0 when volatility is 0.
func SharpeRatio(dailyReturns []float64, riskFreeRate float64) float64 {
	vol := AnnualizedVolatility(dailyReturns)
	if vol == 0 {
		return 0
	}
	return (Mean(dailyReturns)*TradingDaysPerYear - riskFreeRate) / vol
}

// Beta is cov(asset, benchmark) / var(benchmark) over already aligned observations.
// Defaults to 1.0 with fewer than two observations or a zero benchmark variance.
func Beta(asset, benchmark []float64) float64 {
	if len(asset) < 2 || len(asset) != len(benchmark) {
		return 1.0
	}
	variance := Variance(benchmark)
	if variance == 0 {
		return 1.0
	}
	return Covariance(asset, benchmark) / variance
}
