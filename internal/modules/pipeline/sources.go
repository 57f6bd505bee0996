package pipeline

import "github.com/quantflow/optimizer/internal/modules/analysis"

// PerformanceSource supplies the Analyze stage with live performance data.
// The production implementation is analysis.Source; tests substitute fakes.
type PerformanceSource interface {
	TradeStats(days int) (*analysis.TradeStats, error)
	StrategyPerformance(days int) (*analysis.StrategyPerformance, error)
	ModelPerformance() (*analysis.ModelPerformance, error)
	RegimePerformance(days int) (map[string]analysis.RegimeStats, error)
}
