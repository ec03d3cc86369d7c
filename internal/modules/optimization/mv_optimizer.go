// Package optimization provides deterministic mean-variance portfolio optimization.
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/qtop/pkg/formulas"
)

// Solver method names reported in Result.Method
const (
	MethodSingleAsset     = "single_asset"
	MethodEqualWeight     = "equal_weight"
	MethodClosedForm      = "closed_form"
	MethodBFGS            = "bfgs"
	MethodNelderMead      = "nelder_mead"
	MethodInverseVariance = "inverse_variance"
)

// weightFloor is the size below which a solved weight is treated as zero
const weightFloor = 1e-6

// Result is an optimized allocation. ExpectedReturn and Risk are in daily units.
type Result struct {
	Weights        map[string]float64
	Strategy       Strategy
	Method         string
	ExpectedReturn float64 // Σ w_i·mean_i
	Risk           float64 // sqrt(w'Σw)
}

// MVOptimizer performs mean-variance portfolio optimization.
// Weights are long-only and fully invested; the same input always yields the same output.
type MVOptimizer struct {
	riskFreeRate float64 // annual
	log          zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer. riskFreeRate is annual and only
// affects max_sharpe.
func NewMVOptimizer(riskFreeRate float64, log zerolog.Logger) *MVOptimizer {
	return &MVOptimizer{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Optimize computes weights for symbols from their aligned daily returns.
// returns[i] belongs to symbols[i].
func (mvo *MVOptimizer) Optimize(symbols []string, returns [][]float64, strategy Strategy) (*Result, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if len(returns) != len(symbols) {
		return nil, fmt.Errorf("got %d return series for %d symbols", len(returns), len(symbols))
	}

	stats, err := ComputeReturnStats(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to compute return statistics: %w", err)
	}

	if len(returns[0]) < 2 {
		// No dispersion information: equal weights are the only defensible answer
		return mvo.result(symbols, equalWeights(len(symbols)), stats, strategy, MethodEqualWeight), nil
	}

	return mvo.OptimizeStats(symbols, stats, strategy)
}

// OptimizeStats computes weights from precomputed moments
func (mvo *MVOptimizer) OptimizeStats(symbols []string, stats ReturnStats, strategy Strategy) (*Result, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}
	if len(stats.Mean) != n || stats.Covariance == nil || stats.Covariance.SymmetricDim() != n {
		return nil, fmt.Errorf("return statistics do not match %d symbols", n)
	}

	if n == 1 {
		return mvo.result(symbols, []float64{1}, stats, strategy, MethodSingleAsset), nil
	}

	var (
		weights []float64
		method  string
		err     error
	)

	switch strategy {
	case StrategyMinVolatility:
		if n == 2 {
			weights, method = twoAssetMinVariance(stats.Covariance), MethodClosedForm
		} else {
			weights, method, err = mvo.solve(minVolatilityObjective(stats.Covariance), n)
		}
	case StrategyMaxSharpe:
		dailyRF := mvo.riskFreeRate / formulas.TradingDaysPerYear
		weights, method, err = mvo.solve(maxSharpeObjective(stats.Mean, stats.Covariance, dailyRF), n)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}

	if err != nil {
		mvo.log.Warn().
			Err(err).
			Str("strategy", string(strategy)).
			Int("assets", n).
			Msg("Optimizer did not converge, falling back to inverse-variance weights")
		weights, method = inverseVarianceWeights(stats.Covariance), MethodInverseVariance
	}

	return mvo.result(symbols, normalize(weights), stats, strategy, method), nil
}

func (mvo *MVOptimizer) result(symbols []string, w []float64, stats ReturnStats, strategy Strategy, method string) *Result {
	weights := make(map[string]float64, len(symbols))
	var expected float64
	for i, symbol := range symbols {
		weights[symbol] = w[i]
		expected += w[i] * stats.Mean[i]
	}

	return &Result{
		Weights:        weights,
		Strategy:       strategy,
		Method:         method,
		ExpectedReturn: expected,
		Risk:           math.Sqrt(math.Max(0, portfolioVariance(w, stats.Covariance))),
	}
}

// objective evaluates f(w) and writes ∂f/∂w into g
type objective func(w, g []float64) float64

func minVolatilityObjective(cov *mat.SymDense) objective {
	n := cov.SymmetricDim()
	return func(w, g []float64) float64 {
		wv := mat.NewVecDense(n, w)
		var sw mat.VecDense
		sw.MulVec(cov, wv)
		for i := range g {
			g[i] = 2 * sw.AtVec(i) * formulas.TradingDaysPerYear
		}
		// Annualised so the solver works with numbers of order 1e-2 rather than 1e-5
		return mat.Dot(wv, &sw) * formulas.TradingDaysPerYear
	}
}

func maxSharpeObjective(mean []float64, cov *mat.SymDense, dailyRF float64) objective {
	n := cov.SymmetricDim()
	muv := mat.NewVecDense(n, mean)
	return func(w, g []float64) float64 {
		wv := mat.NewVecDense(n, w)
		var sw mat.VecDense
		sw.MulVec(cov, wv)

		excess := mat.Dot(muv, wv) - dailyRF
		sd := math.Sqrt(math.Max(mat.Dot(wv, &sw), formulas.ZeroTolerance*formulas.ZeroTolerance))

		// f = -excess/sd, ∂f/∂w = -(μ/sd - excess·Σw/sd³)
		for i := range g {
			g[i] = -(mean[i]/sd - excess*sw.AtVec(i)/(sd*sd*sd))
		}
		return -excess / sd
	}
}

// solve minimizes obj over the simplex using a softmax parametrization,
// w = softmax(z), so every iterate is long-only and fully invested.
// BFGS runs first; NelderMead is tried when it fails.
func (mvo *MVOptimizer) solve(obj objective, n int) ([]float64, string, error) {
	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			w := softmax(z)
			return obj(w, make([]float64, n))
		},
		Grad: func(grad, z []float64) {
			w := softmax(z)
			g := make([]float64, n)
			obj(w, g)
			// Chain rule through softmax: ∂f/∂z_i = w_i (g_i - Σ_j w_j g_j)
			var wg float64
			for j := range w {
				wg += w[j] * g[j]
			}
			for i := range grad {
				grad[i] = w[i] * (g[i] - wg)
			}
		},
	}

	initial := make([]float64, n) // z = 0 is the equal-weight portfolio
	startF := problem.Func(initial)
	settings := &optimize.Settings{MajorIterations: 1000}

	var lastErr error
	for _, m := range []struct {
		name   string
		method optimize.Method
	}{
		{MethodBFGS, &optimize.BFGS{}},
		{MethodNelderMead, &optimize.NelderMead{}},
	} {
		result, err := optimize.Minimize(problem, initial, settings, m.method)
		if result == nil {
			lastErr = fmt.Errorf("%s failed: %w", m.name, err)
			continue
		}
		// Line search failures next to the optimum still leave the best iterate in result
		if err != nil && !(result.F <= startF) {
			lastErr = fmt.Errorf("%s failed: %w", m.name, err)
			continue
		}
		if err == nil && !usable(result.Status) {
			lastErr = fmt.Errorf("%s did not converge: status=%v", m.name, result.Status)
			continue
		}
		w := softmax(result.X)
		if len(w) != n || !finite(w) {
			lastErr = fmt.Errorf("%s produced non-finite weights", m.name)
			continue
		}
		if err != nil {
			mvo.log.Debug().Err(err).Str("method", m.name).Msg("Solver stopped early, keeping best iterate")
		}
		return w, m.name, nil
	}

	return nil, "", lastErr
}

// usable reports whether the solver's last iterate can be taken as the answer.
// Iteration limits are accepted because every iterate is feasible.
func usable(status optimize.Status) bool {
	switch status {
	case optimize.Success,
		optimize.GradientThreshold,
		optimize.FunctionConvergence,
		optimize.StepConvergence,
		optimize.MethodConverge,
		optimize.IterationLimit,
		optimize.FunctionEvaluationLimit:
		return true
	}
	return false
}

// twoAssetMinVariance is the closed-form long-only minimum variance pair:
// w1 = (σ2² - σ12) / (σ1² + σ2² - 2σ12), clipped to [0, 1].
func twoAssetMinVariance(cov *mat.SymDense) []float64 {
	s11, s22, s12 := cov.At(0, 0), cov.At(1, 1), cov.At(0, 1)
	denom := s11 + s22 - 2*s12
	if denom <= formulas.ZeroTolerance {
		// Perfectly correlated with equal variance: every mix has the same risk
		return []float64{0.5, 0.5}
	}
	w1 := math.Max(0, math.Min(1, (s22-s12)/denom))
	return []float64{w1, 1 - w1}
}

// inverseVarianceWeights weights each asset by 1/σ². Zero-variance assets, if any,
// share the whole allocation equally.
func inverseVarianceWeights(cov *mat.SymDense) []float64 {
	n := cov.SymmetricDim()
	w := make([]float64, n)

	riskless := 0
	for i := 0; i < n; i++ {
		if cov.At(i, i) <= formulas.ZeroTolerance {
			riskless++
		}
	}
	if riskless > 0 {
		for i := 0; i < n; i++ {
			if cov.At(i, i) <= formulas.ZeroTolerance {
				w[i] = 1 / float64(riskless)
			}
		}
		return w
	}

	for i := 0; i < n; i++ {
		w[i] = 1 / cov.At(i, i)
	}
	return normalize(w)
}

func softmax(z []float64) []float64 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	w := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		w[i] = math.Exp(v - maxZ)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// normalize drops negligible and negative weights and rescales to sum to 1.
// Falls back to equal weights when nothing is left.
func normalize(w []float64) []float64 {
	out := make([]float64, len(w))
	var sum float64
	for i, v := range w {
		if v > weightFloor && !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
			sum += v
		}
	}
	if sum <= 0 {
		return equalWeights(len(w))
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func finite(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
