package formulas

// CalculateMaxDrawdown calculates the maximum peak-to-trough decline of an
// equity curve, as a positive fraction (0.25 = 25% loss from peak).
//
// Returns nil when the series is too short to have a drawdown.
func CalculateMaxDrawdown(equity []float64) *float64 {
	if len(equity) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := equity[0]

	for _, value := range equity {
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

	return &maxDrawdown
}
