package analysis

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ModelRepository tracks the deployed prediction model state
type ModelRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewModelRepository creates a model state repository
func NewModelRepository(db *sql.DB, log zerolog.Logger) *ModelRepository {
	return &ModelRepository{
		db:  db,
		log: log.With().Str("repo", "models").Logger(),
	}
}

// Upsert writes the current state for a model
func (r *ModelRepository) Upsert(m ModelPerformance) error {
	lastTrained := time.Now()
	if m.LastTrainedAt != nil {
		lastTrained = *m.LastTrainedAt
	}

	query := `
		INSERT INTO model_state (model_id, version, accuracy, precision_score, recall_score, last_trained_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			version = excluded.version,
			accuracy = excluded.accuracy,
			precision_score = excluded.precision_score,
			recall_score = excluded.recall_score,
			last_trained_at = excluded.last_trained_at
	`

	_, err := r.db.Exec(query,
		m.ModelID,
		m.Version,
		m.Accuracy,
		m.Precision,
		m.Recall,
		lastTrained.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert model state: %w", err)
	}
	return nil
}

// Get returns the state of one model
func (r *ModelRepository) Get(modelID string) (*ModelPerformance, error) {
	query := `
		SELECT model_id, version, accuracy, precision_score, recall_score, last_trained_at
		FROM model_state
		WHERE model_id = ?
	`

	var m ModelPerformance
	var lastTrained string
	err := r.db.QueryRow(query, modelID).Scan(
		&m.ModelID, &m.Version, &m.Accuracy, &m.Precision, &m.Recall, &lastTrained)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}

	if ts, perr := time.Parse(time.RFC3339Nano, lastTrained); perr == nil {
		m.LastTrainedAt = &ts
	}
	return &m, nil
}

// Latest returns the most recently trained model, or nil if none exists
func (r *ModelRepository) Latest() (*ModelPerformance, error) {
	query := `
		SELECT model_id, version, accuracy, precision_score, recall_score, last_trained_at
		FROM model_state
		ORDER BY last_trained_at DESC
		LIMIT 1
	`

	var m ModelPerformance
	var lastTrained string
	err := r.db.QueryRow(query).Scan(
		&m.ModelID, &m.Version, &m.Accuracy, &m.Precision, &m.Recall, &lastTrained)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest model state: %w", err)
	}

	if ts, perr := time.Parse(time.RFC3339Nano, lastTrained); perr == nil {
		m.LastTrainedAt = &ts
	}
	return &m, nil
}
