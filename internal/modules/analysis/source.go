package analysis

import (
	"fmt"
	"time"
)

// Source exposes live performance data to the optimization pipeline,
// backed by the analyzer and the model state repository.
type Source struct {
	analyzer *Analyzer
	models   *ModelRepository
	now      func() time.Time
}

// NewSource creates a pipeline performance source
func NewSource(analyzer *Analyzer, models *ModelRepository) *Source {
	return &Source{
		analyzer: analyzer,
		models:   models,
		now:      time.Now,
	}
}

// TradeStats aggregates trade outcomes over the lookback window
func (s *Source) TradeStats(days int) (*TradeStats, error) {
	end := s.now()
	trades, err := s.analyzer.trades.TradesInRange("", end.AddDate(0, 0, -days), end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	summary := s.analyzer.Summarize(trades)
	return &TradeStats{
		WinRate:      summary["win_rate"],
		ProfitFactor: summary["profit_factor"],
		TotalTrades:  int(summary["total_trades"]),
		NetPnL:       summary["net_pnl"],
	}, nil
}

// StrategyPerformance returns risk-adjusted metrics over the lookback window
func (s *Source) StrategyPerformance(days int) (*StrategyPerformance, error) {
	end := s.now()
	trades, err := s.analyzer.trades.TradesInRange("", end.AddDate(0, 0, -days), end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	summary := s.analyzer.Summarize(trades)
	return &StrategyPerformance{
		SharpeRatio:  summary["sharpe_ratio"],
		SortinoRatio: summary["sortino_ratio"],
		MaxDrawdown:  summary["max_drawdown"],
	}, nil
}

// ModelPerformance returns the most recently trained model's metrics, or
// nil when no model state exists.
func (s *Source) ModelPerformance() (*ModelPerformance, error) {
	return s.models.Latest()
}

// RegimePerformance returns per-regime win rates over the lookback window
func (s *Source) RegimePerformance(days int) (map[string]RegimeStats, error) {
	return s.analyzer.RegimePerformance("", days)
}
