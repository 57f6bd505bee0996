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

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CoefficientOfVariation returns stdev/|mean|, the dimensionless
// volatility measure used for metric trend analysis. Returns 0 when the
// mean is 0.
func CoefficientOfVariation(data []float64) float64 {
	m := Mean(data)
	if m == 0 {
		return 0
	}
	return StdDev(data) / math.Abs(m)
}

// CalculateReturns converts an equity curve to percentage returns
// Returns[i] = (Value[i] - Value[i-1]) / Value[i-1]
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
