package formulas

// CalculateMaxDrawdown returns the largest peak-to-trough fractional decline
// of a value series, as a positive fraction (0.25 = 25% below the running
// peak). Series with fewer than two points have no drawdown.
func CalculateMaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, value := range values[1:] {
		if value > peak {
			peak = value
		}

		if peak > 0 {
			drawdown := (peak - value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown
}
