package database

import "fmt"

// Schema statements are idempotent; Migrate runs them on every boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS optimization_tasks (
		task_id              TEXT PRIMARY KEY,
		task_type            TEXT NOT NULL,
		component_id         TEXT NOT NULL,
		frequency            TEXT NOT NULL,
		priority             INTEGER NOT NULL DEFAULT 5,
		config               BLOB,
		last_run_at          TEXT,
		next_run_at          TEXT,
		status               TEXT NOT NULL DEFAULT 'pending',
		last_result          BLOB,
		last_error           TEXT,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		enabled              INTEGER NOT NULL DEFAULT 1,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS improvement_events (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type     TEXT NOT NULL,
		component_type TEXT NOT NULL,
		component_id   TEXT NOT NULL,
		trigger_reason TEXT NOT NULL,
		metrics        BLOB,
		automated      INTEGER NOT NULL DEFAULT 1,
		created_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS performance_snapshots (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy_id   TEXT NOT NULL DEFAULT '',
		captured_at   TEXT NOT NULL,
		win_rate      REAL NOT NULL,
		profit_factor REAL NOT NULL,
		sharpe_ratio  REAL NOT NULL,
		max_drawdown  REAL NOT NULL,
		total_trades  INTEGER NOT NULL,
		net_pnl       REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_strategy_time
		ON performance_snapshots(strategy_id, captured_at)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy_id TEXT NOT NULL DEFAULT '',
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		quantity    REAL NOT NULL,
		price       REAL NOT NULL,
		net_pnl     REAL NOT NULL,
		regime      TEXT,
		entered_at  TEXT,
		exited_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_exited ON trades(exited_at)`,
	`CREATE TABLE IF NOT EXISTS model_state (
		model_id        TEXT PRIMARY KEY,
		version         TEXT NOT NULL,
		accuracy        REAL NOT NULL,
		precision_score REAL NOT NULL,
		recall_score    REAL NOT NULL,
		last_trained_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rollouts (
		rollout_id    TEXT PRIMARY KEY,
		status        TEXT NOT NULL,
		next_check_at TEXT,
		state         BLOB NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rollouts_due ON rollouts(status, next_check_at)`,
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
