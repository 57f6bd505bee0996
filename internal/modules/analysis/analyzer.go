package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/pkg/formulas"
)

// Thresholds mirror the Identify stage on purpose: the analyzer is usable
// standalone and must flag the same conditions.
const (
	winRateCritical  = 0.45
	winRateWarning   = 0.50
	drawdownCritical = 0.15
	drawdownWarning  = 0.10
	sharpeCritical   = 0.5
	sharpeWarning    = 1.0

	stableBandPercent = 5.0
	minTrendSnapshots = 7
)

// TradeSource provides closed trades for a window
type TradeSource interface {
	TradesInRange(strategyID string, from, to time.Time) ([]Trade, error)
}

// SnapshotSource provides ordered historical performance snapshots
type SnapshotSource interface {
	Snapshots(strategyID string, days int) ([]PerformanceSnapshot, error)
}

// Analyzer computes performance reports: summary metrics, per-metric
// trends, threshold alerts and improvement recommendations.
type Analyzer struct {
	trades    TradeSource
	snapshots SnapshotSource
	log       zerolog.Logger
	now       func() time.Time
}

// NewAnalyzer creates a performance analyzer
func NewAnalyzer(trades TradeSource, snapshots SnapshotSource, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		trades:    trades,
		snapshots: snapshots,
		log:       log.With().Str("component", "performance_analyzer").Logger(),
		now:       time.Now,
	}
}

// AnalyzeRecentPerformance runs the full analysis over the given lookback
func (a *Analyzer) AnalyzeRecentPerformance(strategyID string, days int) (*Report, error) {
	end := a.now()
	start := end.AddDate(0, 0, -days)

	trades, err := a.trades.TradesInRange(strategyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	summary := a.Summarize(trades)

	trends, err := a.analyzeTrends(strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze trends: %w", err)
	}

	alerts := generateAlerts(summary, trends)
	recommendations := generateRecommendations(summary, trends, alerts)

	return &Report{
		Period:          fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		Summary:         summary,
		Trends:          trends,
		Alerts:          alerts,
		Recommendations: recommendations,
	}, nil
}

// Summarize computes the flat summary metrics from a trade list
func (a *Analyzer) Summarize(trades []Trade) map[string]float64 {
	summary := map[string]float64{
		"total_trades":  0,
		"win_rate":      0,
		"profit_factor": 0,
		"net_pnl":       0,
	}
	if len(trades) == 0 {
		return summary
	}

	var wins, losses int
	var grossProfit, grossLoss float64
	var largestWin, largestLoss float64
	equity := make([]float64, 0, len(trades)+1)
	equity = append(equity, 0)
	cumulative := 0.0

	for _, t := range trades {
		cumulative += t.NetPnL
		equity = append(equity, cumulative)
		if t.NetPnL > 0 {
			wins++
			grossProfit += t.NetPnL
			if t.NetPnL > largestWin {
				largestWin = t.NetPnL
			}
		} else {
			losses++
			grossLoss += -t.NetPnL
			if -t.NetPnL > largestLoss {
				largestLoss = -t.NetPnL
			}
		}
	}

	summary["total_trades"] = float64(len(trades))
	summary["winning_trades"] = float64(wins)
	summary["losing_trades"] = float64(losses)
	summary["win_rate"] = float64(wins) / float64(len(trades))
	summary["gross_profit"] = grossProfit
	summary["gross_loss"] = grossLoss
	summary["net_pnl"] = cumulative
	if grossLoss > 0 {
		summary["profit_factor"] = grossProfit / grossLoss
	} else if grossProfit > 0 {
		summary["profit_factor"] = math.Inf(1)
	}
	if wins > 0 {
		summary["average_win"] = grossProfit / float64(wins)
	}
	if losses > 0 {
		summary["average_loss"] = grossLoss / float64(losses)
	}
	summary["largest_win"] = largestWin
	summary["largest_loss"] = largestLoss

	// Risk-adjusted metrics from the per-trade equity curve. The curve is
	// offset so returns are well defined from the first trade on.
	offset := equityOffset(equity)
	shifted := make([]float64, len(equity))
	for i, v := range equity {
		shifted[i] = v + offset
	}
	returns := formulas.CalculateReturns(shifted)
	if sharpe := formulas.CalculateSharpeRatio(returns, 0, 252); sharpe != nil {
		summary["sharpe_ratio"] = *sharpe
	}
	if sortino := formulas.CalculateSortinoRatio(returns, 0, 0, 252); sortino != nil {
		summary["sortino_ratio"] = *sortino
	}
	if maxDD := formulas.CalculateMaxDrawdown(shifted); maxDD != nil {
		summary["max_drawdown"] = *maxDD
	}

	return summary
}

// equityOffset shifts an equity curve into positive territory so that
// percentage returns and drawdowns stay meaningful.
func equityOffset(equity []float64) float64 {
	low := equity[0]
	high := equity[0]
	for _, v := range equity {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	span := high - low
	if span == 0 {
		span = 1
	}
	return span - low
}

// RegimePerformance segments win rates by the regime label recorded on
// each trade.
func (a *Analyzer) RegimePerformance(strategyID string, days int) (map[string]RegimeStats, error) {
	end := a.now()
	start := end.AddDate(0, 0, -days)

	trades, err := a.trades.TradesInRange(strategyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}

	type acc struct {
		trades int
		wins   int
	}
	buckets := make(map[string]*acc)
	for _, t := range trades {
		if t.Regime == "" {
			continue
		}
		b, ok := buckets[t.Regime]
		if !ok {
			b = &acc{}
			buckets[t.Regime] = b
		}
		b.trades++
		if t.NetPnL > 0 {
			b.wins++
		}
	}

	out := make(map[string]RegimeStats, len(buckets))
	for regime, b := range buckets {
		out[regime] = RegimeStats{
			WinRate: float64(b.wins) / float64(b.trades),
			Trades:  b.trades,
		}
	}
	return out, nil
}

// analyzeTrends computes trends for the tracked metrics when enough
// history exists.
func (a *Analyzer) analyzeTrends(strategyID string) (map[string]PerformanceTrend, error) {
	trends := make(map[string]PerformanceTrend)

	snapshots, err := a.snapshots.Snapshots(strategyID, 90)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < minTrendSnapshots {
		a.log.Debug().Int("snapshots", len(snapshots)).Msg("Insufficient history for trend analysis")
		return trends, nil
	}

	for _, metric := range []string{"win_rate", "sharpe_ratio", "max_drawdown", "profit_factor"} {
		values := make([]float64, len(snapshots))
		for i, s := range snapshots {
			values[i] = s.Metric(metric)
		}
		if trend := CalculateTrend(values, metric); trend != nil {
			trends[metric] = *trend
		}
	}

	return trends, nil
}

// CalculateTrend derives the trend of a metric series: the ordered series
// is split at its midpoint and the later half's mean is compared to the
// earlier half's. Changes below 5% in magnitude are stable regardless of
// metric polarity; beyond that, direction is inverted for max_drawdown
// where lower is better. Volatility is the coefficient of variation of
// the full series.
func CalculateTrend(values []float64, metric string) *PerformanceTrend {
	if len(values) < minTrendSnapshots {
		return nil
	}

	mid := len(values) / 2
	historical := values[:mid]
	recent := values[mid:]
	if len(historical) == 0 || len(recent) == 0 {
		return nil
	}

	historicalAvg := formulas.Mean(historical)
	recentAvg := formulas.Mean(recent)

	changePct := 0.0
	if historicalAvg != 0 {
		changePct = (recentAvg - historicalAvg) / math.Abs(historicalAvg) * 100
	}

	lowerIsBetter := metric == "max_drawdown"
	direction := TrendStable
	if math.Abs(changePct) >= stableBandPercent {
		if changePct > 0 {
			direction = TrendImproving
			if lowerIsBetter {
				direction = TrendDeclining
			}
		} else {
			direction = TrendDeclining
			if lowerIsBetter {
				direction = TrendImproving
			}
		}
	}

	return &PerformanceTrend{
		MetricName:        metric,
		Direction:         direction,
		ChangePercent:     changePct,
		Volatility:        formulas.CoefficientOfVariation(values),
		RecentAverage:     recentAvg,
		HistoricalAverage: historicalAvg,
	}
}

func generateAlerts(summary map[string]float64, trends map[string]PerformanceTrend) []Alert {
	var alerts []Alert

	winRate := metricOr(summary, "win_rate", 0.5)
	if winRate < winRateCritical {
		alerts = append(alerts, Alert{
			Severity: "critical", Metric: "win_rate", Value: winRate, Threshold: winRateCritical,
			Message: fmt.Sprintf("Win rate %.1f%% below critical threshold", winRate*100),
		})
	} else if winRate < winRateWarning {
		alerts = append(alerts, Alert{
			Severity: "warning", Metric: "win_rate", Value: winRate, Threshold: winRateWarning,
			Message: fmt.Sprintf("Win rate %.1f%% below optimal", winRate*100),
		})
	}

	maxDD := metricOr(summary, "max_drawdown", 0)
	if maxDD > drawdownCritical {
		alerts = append(alerts, Alert{
			Severity: "critical", Metric: "max_drawdown", Value: maxDD, Threshold: drawdownCritical,
			Message: fmt.Sprintf("Max drawdown %.1f%% exceeds 15%% limit", maxDD*100),
		})
	} else if maxDD > drawdownWarning {
		alerts = append(alerts, Alert{
			Severity: "warning", Metric: "max_drawdown", Value: maxDD, Threshold: drawdownWarning,
			Message: fmt.Sprintf("Max drawdown %.1f%% elevated", maxDD*100),
		})
	}

	sharpe := metricOr(summary, "sharpe_ratio", 1.0)
	if sharpe < sharpeCritical {
		alerts = append(alerts, Alert{
			Severity: "critical", Metric: "sharpe_ratio", Value: sharpe, Threshold: sharpeCritical,
			Message: fmt.Sprintf("Sharpe ratio %.2f critically low", sharpe),
		})
	} else if sharpe < sharpeWarning {
		alerts = append(alerts, Alert{
			Severity: "warning", Metric: "sharpe_ratio", Value: sharpe, Threshold: sharpeWarning,
			Message: fmt.Sprintf("Sharpe ratio %.2f below optimal", sharpe),
		})
	}

	for metric, trend := range trends {
		if trend.Direction == TrendDeclining && math.Abs(trend.ChangePercent) > 10 {
			alerts = append(alerts, Alert{
				Severity: "warning", Metric: metric, Value: trend.ChangePercent,
				Message: fmt.Sprintf("%s declining by %.1f%%", metric, trend.ChangePercent),
			})
		}
	}

	return alerts
}

func generateRecommendations(summary map[string]float64, trends map[string]PerformanceTrend, alerts []Alert) []string {
	var recs []string

	for _, alert := range alerts {
		if alert.Severity != "critical" {
			continue
		}
		switch alert.Metric {
		case "win_rate":
			recs = append(recs, "Perform hyperparameter optimization immediately")
			recs = append(recs, "Review entry signal criteria")
		case "max_drawdown":
			recs = append(recs, "Tighten stop-loss parameters")
			recs = append(recs, "Reduce position sizes")
		case "sharpe_ratio":
			recs = append(recs, "Retrain prediction models")
			recs = append(recs, "Optimize strategy weights")
		}
	}

	for metric, trend := range trends {
		if trend.Direction != TrendDeclining {
			continue
		}
		switch metric {
		case "win_rate":
			recs = append(recs, "Analyze losing trades for pattern changes")
		case "sharpe_ratio":
			recs = append(recs, "Review risk-adjusted returns")
		}
	}

	if metricOr(summary, "profit_factor", 1.5) < 1.5 {
		recs = append(recs, "Optimize take-profit targets")
	}
	avgWin := metricOr(summary, "average_win", 0)
	avgLoss := metricOr(summary, "average_loss", 1)
	if avgLoss > 0 && avgWin/avgLoss < 1.5 {
		recs = append(recs, "Improve risk/reward ratio (target 2:1 minimum)")
	}

	return dedupe(recs)
}

func metricOr(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// dedupe removes duplicate recommendations, keeping first occurrence order
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
