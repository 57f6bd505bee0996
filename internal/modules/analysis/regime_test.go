package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func geometricCloses(start, growthPerStep float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start * math.Pow(1+growthPerStep, float64(i))
	}
	return closes
}

func TestClassifyRegimeShortSeriesIsRanging(t *testing.T) {
	assert.Equal(t, RegimeRanging, ClassifyRegime(nil))
	assert.Equal(t, RegimeRanging, ClassifyRegime(geometricCloses(100, 0.01, 30)))
}

func TestClassifyRegimeTrendingUp(t *testing.T) {
	closes := geometricCloses(100, 0.01, 40)
	assert.Equal(t, RegimeTrendingUp, ClassifyRegime(closes))
}

func TestClassifyRegimeTrendingDown(t *testing.T) {
	closes := geometricCloses(100, -0.01, 40)
	assert.Equal(t, RegimeTrendingDown, ClassifyRegime(closes))
}

func TestClassifyRegimeFlatIsRanging(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	assert.Equal(t, RegimeRanging, ClassifyRegime(closes))
}

func TestClassifyRegimeVolatilityDominates(t *testing.T) {
	// Alternating 5% swings produce a return stdev above the volatility
	// threshold even though prices stay in a band.
	closes := make([]float64, 40)
	price := 100.0
	for i := range closes {
		closes[i] = price
		if i%2 == 0 {
			price *= 1.05
		} else {
			price /= 1.05
		}
	}
	assert.Equal(t, RegimeVolatile, ClassifyRegime(closes))
}
