package analysis

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotRepository persists daily performance snapshots
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewSnapshotRepository creates a snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
		now: time.Now,
	}
}

// Insert writes one snapshot row
func (r *SnapshotRepository) Insert(s PerformanceSnapshot) error {
	query := `
		INSERT INTO performance_snapshots
		(strategy_id, captured_at, win_rate, profit_factor, sharpe_ratio, max_drawdown, total_trades, net_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		s.StrategyID,
		s.CapturedAt.UTC().Format(time.RFC3339Nano),
		s.WinRate,
		s.ProfitFactor,
		s.SharpeRatio,
		s.MaxDrawdown,
		s.TotalTrades,
		s.NetPnL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Snapshots returns snapshots for the lookback window, oldest first. An
// empty strategy ID matches all strategies.
func (r *SnapshotRepository) Snapshots(strategyID string, days int) ([]PerformanceSnapshot, error) {
	cutoff := r.now().AddDate(0, 0, -days)

	query := `
		SELECT strategy_id, captured_at, win_rate, profit_factor, sharpe_ratio, max_drawdown, total_trades, net_pnl
		FROM performance_snapshots
		WHERE captured_at >= ?
	`
	args := []interface{}{cutoff.UTC().Format(time.RFC3339Nano)}
	if strategyID != "" {
		query += " AND strategy_id = ?"
		args = append(args, strategyID)
	}
	query += " ORDER BY captured_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []PerformanceSnapshot
	for rows.Next() {
		var s PerformanceSnapshot
		var capturedAt string

		if err := rows.Scan(&s.StrategyID, &capturedAt, &s.WinRate, &s.ProfitFactor,
			&s.SharpeRatio, &s.MaxDrawdown, &s.TotalTrades, &s.NetPnL); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if ts, err := time.Parse(time.RFC3339Nano, capturedAt); err == nil {
			s.CapturedAt = ts
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
