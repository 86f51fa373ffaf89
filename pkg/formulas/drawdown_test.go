package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single value", []float64{100}, 0},
		{"monotonic increase", []float64{100, 101, 101, 105, 110}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 0.25},
		{"two dips, deeper second", []float64{100, 90, 110, 77}, 0.3},
		{"ends in drawdown", []float64{10, 8}, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CalculateMaxDrawdown(tt.values), 1e-12)
		})
	}
}
