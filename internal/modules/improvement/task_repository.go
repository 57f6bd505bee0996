package improvement

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// TaskRepository persists tasks and improvement events to sqlite.
// Opaque payloads (config, results, event metrics) are stored as msgpack
// blobs.
type TaskRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTaskRepository creates a task repository
func NewTaskRepository(db *sql.DB, log zerolog.Logger) *TaskRepository {
	return &TaskRepository{
		db:  db,
		log: log.With().Str("repo", "tasks").Logger(),
	}
}

// UpsertTask writes the full task state, inserting or replacing by ID
func (r *TaskRepository) UpsertTask(task *Task) error {
	configBlob, err := encodePayload(task.Config)
	if err != nil {
		return fmt.Errorf("failed to encode task config: %w", err)
	}
	resultBlob, err := encodePayload(task.LastResult)
	if err != nil {
		return fmt.Errorf("failed to encode task result: %w", err)
	}

	query := `
		INSERT INTO optimization_tasks
		(task_id, task_type, component_id, frequency, priority, config,
		 last_run_at, next_run_at, status, last_result, last_error,
		 consecutive_failures, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			task_type = excluded.task_type,
			component_id = excluded.component_id,
			frequency = excluded.frequency,
			priority = excluded.priority,
			config = excluded.config,
			last_run_at = excluded.last_run_at,
			next_run_at = excluded.next_run_at,
			status = excluded.status,
			last_result = excluded.last_result,
			last_error = excluded.last_error,
			consecutive_failures = excluded.consecutive_failures,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		task.ID,
		string(task.Type),
		task.ComponentID,
		string(task.Frequency),
		task.Priority,
		configBlob,
		nullTime(task.LastRunAt),
		nullTime(task.NextRunAt),
		string(task.Status),
		resultBlob,
		nullStr(task.LastError),
		task.ConsecutiveFailures,
		boolToInt(task.Enabled),
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		task.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	return nil
}

// DeleteTask removes a task row by ID
func (r *TaskRepository) DeleteTask(taskID string) error {
	if _, err := r.db.Exec("DELETE FROM optimization_tasks WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// LoadAll reads every persisted task, ordered by creation time
func (r *TaskRepository) LoadAll() ([]*Task, error) {
	query := `
		SELECT task_id, task_type, component_id, frequency, priority, config,
		       last_run_at, next_run_at, status, last_result, last_error,
		       consecutive_failures, enabled, created_at, updated_at
		FROM optimization_tasks
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// AppendEvent writes one improvement-event audit record
func (r *TaskRepository) AppendEvent(event ImprovementEvent) error {
	metricsBlob, err := encodePayload(event.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode event metrics: %w", err)
	}

	query := `
		INSERT INTO improvement_events
		(event_type, component_type, component_id, trigger_reason, metrics, automated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		event.EventType,
		event.ComponentType,
		event.ComponentID,
		event.TriggerReason,
		metricsBlob,
		boolToInt(event.Automated),
		event.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append improvement event: %w", err)
	}

	return nil
}

// RecentEvents returns the most recent improvement events, newest first
func (r *TaskRepository) RecentEvents(limit int) ([]ImprovementEvent, error) {
	query := `
		SELECT event_type, component_type, component_id, trigger_reason, metrics, automated, created_at
		FROM improvement_events
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load improvement events: %w", err)
	}
	defer rows.Close()

	var out []ImprovementEvent
	for rows.Next() {
		var ev ImprovementEvent
		var metricsBlob []byte
		var automated int
		var createdAt string

		if err := rows.Scan(&ev.EventType, &ev.ComponentType, &ev.ComponentID,
			&ev.TriggerReason, &metricsBlob, &automated, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan improvement event: %w", err)
		}

		ev.Automated = automated != 0
		if metricsBlob != nil {
			if err := msgpack.Unmarshal(metricsBlob, &ev.Metrics); err != nil {
				return nil, fmt.Errorf("failed to decode event metrics: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			ev.CreatedAt = t
		}
		out = append(out, ev)
	}

	return out, rows.Err()
}

// Scan helpers

func scanTask(rows *sql.Rows) (*Task, error) {
	var task Task
	var taskType, frequency, status string
	var configBlob, resultBlob []byte
	var lastRunAt, nextRunAt, lastError sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := rows.Scan(
		&task.ID,
		&taskType,
		&task.ComponentID,
		&frequency,
		&task.Priority,
		&configBlob,
		&lastRunAt,
		&nextRunAt,
		&status,
		&resultBlob,
		&lastError,
		&task.ConsecutiveFailures,
		&enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Type = OptimizationType(taskType)
	task.Frequency = Frequency(frequency)
	task.Status = TaskStatus(status)
	task.Enabled = enabled != 0

	if configBlob != nil {
		if err := msgpack.Unmarshal(configBlob, &task.Config); err != nil {
			return nil, fmt.Errorf("failed to decode task config: %w", err)
		}
	}
	if resultBlob != nil {
		if err := msgpack.Unmarshal(resultBlob, &task.LastResult); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
	}
	if lastError.Valid {
		task.LastError = lastError.String
	}
	if lastRunAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastRunAt.String); err == nil {
			task.LastRunAt = &t
		}
	}
	if nextRunAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, nextRunAt.String); err == nil {
			task.NextRunAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		task.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		task.UpdatedAt = t
	}

	return &task, nil
}

func encodePayload(payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return msgpack.Marshal(payload)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
