package formulas

import "math"

// CalculateSharpeRatio calculates the annualized Sharpe ratio.
//
// Sharpe = (mean periodic return - periodic risk-free rate) / stdev of returns
// annualized by sqrt(periodsPerYear).
//
// Returns nil on insufficient data or zero variance.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	stdDev := StdDev(returns)
	if stdDev == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sharpe := (Mean(returns) - periodicRiskFree) / stdDev
	annualized := sharpe * math.Sqrt(float64(periodsPerYear))

	return &annualized
}

// CalculateSortinoRatio calculates the annualized Sortino ratio, the
// downside-deviation variant of Sharpe. Only returns below the minimum
// acceptable return contribute to the deviation.
//
// Returns nil when there is no downside below the MAR.
func CalculateSortinoRatio(returns []float64, riskFreeRate, targetReturn float64, periodsPerYear int) *float64 {
	if len(returns) < 2 {
		return nil
	}

	periodicMAR := targetReturn / float64(periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range returns {
		if ret < periodicMAR {
			deviation := ret - periodicMAR
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation == 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)
	sortino := (Mean(returns) - periodicRiskFree) / downsideDeviation
	annualized := sortino * math.Sqrt(float64(periodsPerYear))

	return &annualized
}
