package optimization

import "fmt"

// Strategy selects the mean-variance objective
type Strategy string

const (
	// StrategyMinVolatility minimizes w'Σw
	StrategyMinVolatility Strategy = "min_volatility"
	// StrategyMaxSharpe maximizes (μ'w - r_f) / sqrt(w'Σw)
	StrategyMaxSharpe Strategy = "max_sharpe"
)

// ParseStrategy validates a strategy name. An empty name selects min_volatility.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "":
		return StrategyMinVolatility, nil
	case StrategyMinVolatility, StrategyMaxSharpe:
		return Strategy(name), nil
	default:
		return "", fmt.Errorf("unknown strategy: %s", name)
	}
}
