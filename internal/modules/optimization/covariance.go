package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ReturnStats holds the sample moments of aligned daily returns
type ReturnStats struct {
	Mean       []float64     // per-asset mean daily return
	Covariance *mat.SymDense // n×n sample covariance of daily returns
}

// ComputeReturnStats computes mean returns and the sample covariance matrix.
// returns[i] is the daily return series of asset i; all rows must have equal length.
// With fewer than two observations the covariance is all zeros.
func ComputeReturnStats(returns [][]float64) (ReturnStats, error) {
	n := len(returns)
	if n == 0 {
		return ReturnStats{}, fmt.Errorf("no return series provided")
	}

	t := len(returns[0])
	for i, r := range returns {
		if len(r) != t {
			return ReturnStats{}, fmt.Errorf("return series %d has %d observations, expected %d", i, len(r), t)
		}
	}

	means := make([]float64, n)
	for i, r := range returns {
		if t > 0 {
			means[i] = stat.Mean(r, nil)
		}
	}

	cov := mat.NewSymDense(n, nil)
	if t < 2 {
		return ReturnStats{Mean: means, Covariance: cov}, nil
	}

	// Observations in rows, assets in columns
	data := mat.NewDense(t, n, nil)
	for i, r := range returns {
		data.SetCol(i, r)
	}
	stat.CovarianceMatrix(cov, data, nil)

	return ReturnStats{Mean: means, Covariance: cov}, nil
}

// portfolioVariance returns w'Σw
func portfolioVariance(w []float64, cov *mat.SymDense) float64 {
	wv := mat.NewVecDense(len(w), w)
	return mat.Inner(wv, cov, wv)
}
