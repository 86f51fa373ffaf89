package backtest

import (
	"github.com/aristath/vaultbench/internal/domain"
	"github.com/aristath/vaultbench/pkg/formulas"
)

// MovingAverageWindow is the number of periods in the moving-average APY
const MovingAverageWindow = 7

// NewSeries compounds initial capital over period returns
func NewSeries(initial float64, returns []float64) domain.PortfolioSeries {
	r := make([]float64, len(returns))
	copy(r, returns)
	return domain.PortfolioSeries{
		Values:  formulas.Compound(initial, r),
		Returns: r,
	}
}

// Evaluate computes performance metrics of a series. riskFreeRate is annual.
func Evaluate(series domain.PortfolioSeries, riskFreeRate float64) domain.PerformanceMetrics {
	var totalReturn float64
	if len(series.Values) > 0 && series.Values[0] != 0 {
		totalReturn = (series.Final() - series.Values[0]) / series.Values[0]
	}

	periodAPY := formulas.PeriodAPY(series.Returns, formulas.DaysPerYear)

	return domain.PerformanceMetrics{
		TotalReturn:  totalReturn,
		SharpeRatio:  formulas.CalculateSharpeRatio(series.Returns, riskFreeRate, formulas.DaysPerYear),
		MaxDrawdown:  formulas.CalculateMaxDrawdown(series.Values),
		AverageAPY:   formulas.Mean(periodAPY),
		PeriodAPY:    periodAPY,
		MovingAvgAPY: formulas.MovingAverage(periodAPY, MovingAverageWindow),
	}
}
