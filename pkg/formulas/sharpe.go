package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DaysPerYear is the annualization factor for daily series. Chains settle
// every calendar day, so this is 365 rather than 252 trading days.
const DaysPerYear = 365

// zeroVariance absorbs the rounding noise of stat.PopMeanStdDev on constant
// series so those are treated as having no variance.
const zeroVariance = 1e-12

// CalculateSharpeRatio calculates the annualized Sharpe Ratio
//
//	excess = r - riskFreeRate/periodsPerYear
//	Sharpe = sqrt(periodsPerYear) × mean(excess) / popstd(excess)
//
// riskFreeRate is annual, as decimal (0.02 for 2%). Returns 0 when fewer
// than two returns are supplied or the excess returns have no variance.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}

	excess := make([]float64, len(returns))
	copy(excess, returns)
	floats.AddConst(-riskFreeRate/float64(periodsPerYear), excess)

	mean, std := stat.PopMeanStdDev(excess, nil)
	if std < zeroVariance || isNaN(std) {
		return 0
	}

	return math.Sqrt(float64(periodsPerYear)) * mean / std
}
