package pipeline

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// rolloutState is the msgpack-encoded portion of a rollout row. Columns
// carry only what queries filter on; the rest travels as a blob.
type rolloutState struct {
	ABTestID      string                 `msgpack:"ab_test_id"`
	Optimizations map[string]interface{} `msgpack:"optimizations"`
	ActionsTaken  []string               `msgpack:"actions_taken"`
	MetricsAfter  map[string]float64     `msgpack:"metrics_after"`
	Error         string                 `msgpack:"error"`
}

// RolloutRepository persists staged-deployment records
type RolloutRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRolloutRepository creates a rollout repository
func NewRolloutRepository(db *sql.DB, log zerolog.Logger) *RolloutRepository {
	return &RolloutRepository{
		db:  db,
		log: log.With().Str("repo", "rollouts").Logger(),
	}
}

// Save inserts or replaces a rollout row
func (r *RolloutRepository) Save(rollout *Rollout) error {
	blob, err := msgpack.Marshal(rolloutState{
		ABTestID:      rollout.ABTestID,
		Optimizations: rollout.Optimizations,
		ActionsTaken:  rollout.ActionsTaken,
		MetricsAfter:  rollout.MetricsAfter,
		Error:         rollout.Error,
	})
	if err != nil {
		return fmt.Errorf("failed to encode rollout state: %w", err)
	}

	var nextCheck sql.NullString
	if rollout.NextCheckAt != nil {
		nextCheck = sql.NullString{String: rollout.NextCheckAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	query := `
		INSERT INTO rollouts (rollout_id, status, next_check_at, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rollout_id) DO UPDATE SET
			status = excluded.status,
			next_check_at = excluded.next_check_at,
			state = excluded.state,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		rollout.ID,
		string(rollout.Status),
		nextCheck,
		blob,
		rollout.CreatedAt.UTC().Format(time.RFC3339Nano),
		rollout.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save rollout: %w", err)
	}
	return nil
}

// Get returns one rollout by ID, or nil when not found
func (r *RolloutRepository) Get(rolloutID string) (*Rollout, error) {
	row := r.db.QueryRow(`
		SELECT rollout_id, status, next_check_at, state, created_at, updated_at
		FROM rollouts WHERE rollout_id = ?
	`, rolloutID)

	rollout, err := scanRollout(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rollout: %w", err)
	}
	return rollout, nil
}

// Due returns non-terminal rollouts whose check time has arrived
func (r *RolloutRepository) Due(now time.Time) ([]*Rollout, error) {
	rows, err := r.db.Query(`
		SELECT rollout_id, status, next_check_at, state, created_at, updated_at
		FROM rollouts
		WHERE status IN (?, ?) AND next_check_at IS NOT NULL AND next_check_at <= ?
		ORDER BY next_check_at ASC
	`, string(RolloutCanary), string(RolloutRamping), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to query due rollouts: %w", err)
	}
	defer rows.Close()

	return collectRollouts(rows)
}

// List returns the most recent rollouts, newest first
func (r *RolloutRepository) List(limit int) ([]*Rollout, error) {
	rows, err := r.db.Query(`
		SELECT rollout_id, status, next_check_at, state, created_at, updated_at
		FROM rollouts
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rollouts: %w", err)
	}
	defer rows.Close()

	return collectRollouts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func collectRollouts(rows *sql.Rows) ([]*Rollout, error) {
	var out []*Rollout
	for rows.Next() {
		rollout, err := scanRollout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rollout: %w", err)
		}
		out = append(out, rollout)
	}
	return out, rows.Err()
}

func scanRollout(row rowScanner) (*Rollout, error) {
	var rollout Rollout
	var status string
	var nextCheck sql.NullString
	var blob []byte
	var createdAt, updatedAt string

	if err := row.Scan(&rollout.ID, &status, &nextCheck, &blob, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rollout.Status = RolloutStatus(status)
	if nextCheck.Valid {
		if t, err := time.Parse(time.RFC3339Nano, nextCheck.String); err == nil {
			rollout.NextCheckAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rollout.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rollout.UpdatedAt = t
	}

	var state rolloutState
	if err := msgpack.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("failed to decode rollout state: %w", err)
	}
	rollout.ABTestID = state.ABTestID
	rollout.Optimizations = state.Optimizations
	rollout.ActionsTaken = state.ActionsTaken
	rollout.MetricsAfter = state.MetricsAfter
	rollout.Error = state.Error

	return &rollout, nil
}
