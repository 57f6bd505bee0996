package analysis

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/quantflow/optimizer/pkg/formulas"
)

// Market regime labels attached to trades and used for per-regime
// performance breakdowns.
const (
	RegimeTrendingUp   = "trending_up"
	RegimeTrendingDown = "trending_down"
	RegimeRanging      = "ranging"
	RegimeVolatile     = "volatile"
)

const (
	regimeFastEMA       = 10
	regimeSlowEMA       = 30
	regimeTrendBand     = 0.01 // 1% EMA separation to call a trend
	regimeVolThreshold  = 0.03 // daily return stdev above this is volatile
	minRegimeDataPoints = regimeSlowEMA + 1
)

// ClassifyRegime labels the current market regime from a close-price
// series. Volatility dominates: a choppy market is volatile even when the
// EMAs are separated. Otherwise the fast/slow EMA relationship decides
// between trending and ranging.
func ClassifyRegime(closes []float64) string {
	if len(closes) < minRegimeDataPoints {
		return RegimeRanging
	}

	returns := formulas.CalculateReturns(closes)
	if len(returns) > 1 && formulas.StdDev(returns) > regimeVolThreshold {
		return RegimeVolatile
	}

	fast := talib.Ema(closes, regimeFastEMA)
	slow := talib.Ema(closes, regimeSlowEMA)
	latestFast := fast[len(fast)-1]
	latestSlow := slow[len(slow)-1]
	if latestSlow == 0 {
		return RegimeRanging
	}

	separation := (latestFast - latestSlow) / math.Abs(latestSlow)
	switch {
	case separation > regimeTrendBand:
		return RegimeTrendingUp
	case separation < -regimeTrendBand:
		return RegimeTrendingDown
	default:
		return RegimeRanging
	}
}
