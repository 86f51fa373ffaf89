package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSharpeRatio_InsufficientData(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSharpeRatio(nil, 0.02, DaysPerYear))
	assert.Equal(t, 0.0, CalculateSharpeRatio([]float64{0.01}, 0.02, DaysPerYear))
}

func TestCalculateSharpeRatio_ZeroVariance(t *testing.T) {
	returns := makeReturns(0.0001, 365)
	assert.Equal(t, 0.0, CalculateSharpeRatio(returns, 0.02, DaysPerYear))
}

func TestCalculateSharpeRatio_KnownValue(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02, 0.0}
	rf := 0.0365 // 0.0001 per day

	// excess = {0.0099, -0.0101, 0.0199, -0.0001}
	// mean = 0.0049, population std = sqrt(0.000125) ≈ 0.0111803
	mean := 0.0049
	std := math.Sqrt(0.000125)
	expected := math.Sqrt(365) * mean / std

	got := CalculateSharpeRatio(returns, rf, DaysPerYear)
	assert.InDelta(t, expected, got, 1e-9)
}

func TestCalculateSharpeRatio_SignFollowsExcessReturn(t *testing.T) {
	losing := []float64{-0.01, 0.002, -0.004, -0.002}
	assert.Less(t, CalculateSharpeRatio(losing, 0.02, DaysPerYear), 0.0)

	winning := []float64{0.01, 0.002, 0.004, 0.003}
	assert.Greater(t, CalculateSharpeRatio(winning, 0.02, DaysPerYear), 0.0)
}
