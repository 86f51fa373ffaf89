// Package formulas implements the return-series arithmetic behind the
// backtest: period returns, compounding, Sharpe ratio, drawdown and APY.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// CalculateReturns converts values to fractional period returns
// Returns[i] = (Value[i+1] - Value[i]) / Value[i]
func CalculateReturns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns[i-1] = (values[i] - values[i-1]) / values[i-1]
		}
	}

	return returns
}

// Compound builds a value series from an initial value and period returns.
// The result has len(returns)+1 entries and starts at initial.
func Compound(initial float64, returns []float64) []float64 {
	values := make([]float64, 0, len(returns)+1)
	values = append(values, initial)

	current := initial
	for _, r := range returns {
		current *= 1 + r
		values = append(values, current)
	}

	return values
}

// Normalize divides every value by the first one.
func Normalize(values []float64) []float64 {
	if len(values) == 0 || values[0] == 0 {
		return []float64{}
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / values[0]
	}
	return out
}

func isNaN(f float64) bool {
	return math.IsNaN(f)
}
