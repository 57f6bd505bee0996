package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/modules/analysis"
)

// SnapshotCaptureJob computes a daily performance snapshot from the last
// 24 hours of trades and stores it so trend analysis has history to work
// with.
type SnapshotCaptureJob struct {
	analyzer  *analysis.Analyzer
	trades    analysis.TradeSource
	snapshots *analysis.SnapshotRepository
	log       zerolog.Logger
	now       func() time.Time
}

// NewSnapshotCaptureJob creates a snapshot capture job
func NewSnapshotCaptureJob(analyzer *analysis.Analyzer, trades analysis.TradeSource, snapshots *analysis.SnapshotRepository, log zerolog.Logger) *SnapshotCaptureJob {
	return &SnapshotCaptureJob{
		analyzer:  analyzer,
		trades:    trades,
		snapshots: snapshots,
		log:       log.With().Str("job", "snapshot_capture").Logger(),
		now:       time.Now,
	}
}

// Name returns the job name
func (j *SnapshotCaptureJob) Name() string {
	return "snapshot_capture"
}

// Run captures one snapshot covering the trailing 24 hours
func (j *SnapshotCaptureJob) Run() error {
	end := j.now()
	start := end.Add(-24 * time.Hour)

	trades, err := j.trades.TradesInRange("", start, end)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		j.log.Debug().Msg("No trades in window, skipping snapshot")
		return nil
	}

	summary := j.analyzer.Summarize(trades)
	snapshot := analysis.PerformanceSnapshot{
		CapturedAt:   end,
		WinRate:      summary["win_rate"],
		ProfitFactor: summary["profit_factor"],
		SharpeRatio:  summary["sharpe_ratio"],
		MaxDrawdown:  summary["max_drawdown"],
		TotalTrades:  int(summary["total_trades"]),
		NetPnL:       summary["net_pnl"],
	}
	if err := j.snapshots.Insert(snapshot); err != nil {
		return err
	}

	j.log.Info().
		Int("trades", snapshot.TotalTrades).
		Float64("win_rate", snapshot.WinRate).
		Msg("Performance snapshot captured")
	return nil
}
