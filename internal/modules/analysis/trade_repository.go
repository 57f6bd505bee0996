package analysis

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TradeRepository reads and writes closed trades
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// Insert records one closed trade
func (r *TradeRepository) Insert(t Trade) error {
	query := `
		INSERT INTO trades
		(strategy_id, symbol, side, quantity, price, net_pnl, regime, entered_at, exited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var enteredAt sql.NullString
	if t.EnteredAt != nil {
		enteredAt = sql.NullString{String: t.EnteredAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	var regime sql.NullString
	if t.Regime != "" {
		regime = sql.NullString{String: t.Regime, Valid: true}
	}

	_, err := r.db.Exec(query,
		t.StrategyID,
		t.Symbol,
		t.Side,
		t.Quantity,
		t.Price,
		t.NetPnL,
		regime,
		enteredAt,
		t.ExitedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// TradesInRange returns closed trades for a strategy inside [from, to),
// oldest first. An empty strategy ID matches all strategies.
func (r *TradeRepository) TradesInRange(strategyID string, from, to time.Time) ([]Trade, error) {
	query := `
		SELECT id, strategy_id, symbol, side, quantity, price, net_pnl, regime, entered_at, exited_at
		FROM trades
		WHERE exited_at >= ? AND exited_at < ?
	`
	args := []interface{}{
		from.UTC().Format(time.RFC3339Nano),
		to.UTC().Format(time.RFC3339Nano),
	}
	if strategyID != "" {
		query += " AND strategy_id = ?"
		args = append(args, strategyID)
	}
	query += " ORDER BY exited_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		var regime, enteredAt sql.NullString
		var exitedAt string

		if err := rows.Scan(&t.ID, &t.StrategyID, &t.Symbol, &t.Side,
			&t.Quantity, &t.Price, &t.NetPnL, &regime, &enteredAt, &exitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if regime.Valid {
			t.Regime = regime.String
		}
		if enteredAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, enteredAt.String); err == nil {
				t.EnteredAt = &ts
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, exitedAt); err == nil {
			t.ExitedAt = ts
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}
