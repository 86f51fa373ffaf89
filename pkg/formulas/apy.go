package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SecondsPerYear uses a 365 day year.
const SecondsPerYear = 365 * 24 * 3600

// AnnualizeGrowth converts the growth from startPrice to endPrice over
// elapsedSeconds into an APY: (end/start)^(1/years) - 1.
// Returns 0 if either price is not positive or no time elapsed.
func AnnualizeGrowth(startPrice, endPrice float64, elapsedSeconds int64) float64 {
	if startPrice <= 0 || endPrice <= 0 || elapsedSeconds <= 0 {
		return 0
	}

	years := float64(elapsedSeconds) / SecondsPerYear
	return math.Pow(endPrice/startPrice, 1/years) - 1
}

// CalculateAPY annualizes a share price change over a number of days:
// (final/initial)^(365/days) - 1, 0 for non-positive inputs.
func CalculateAPY(initialPrice, finalPrice, days float64) float64 {
	if initialPrice <= 0 || days <= 0 {
		return 0
	}
	return math.Pow(finalPrice/initialPrice, DaysPerYear/days) - 1
}

// PeriodAPY annualizes each period return: (1 + r)^periodsPerYear - 1.
func PeriodAPY(returns []float64, periodsPerYear int) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = math.Pow(1+r, float64(periodsPerYear)) - 1
	}
	return out
}

// MovingAverage returns the simple moving average over window periods,
// aligned with the input. The first window-1 entries are NaN because the
// window is not yet full.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || len(values) < window {
		return out
	}

	sma := talib.Sma(values, window)
	copy(out[window-1:], sma[window-1:])
	return out
}
