package improvement

import (
	"time"

	"github.com/quantflow/optimizer/internal/notify"
)

// OptimizationType identifies the kind of work a task performs. The set is
// closed at the type level but open through the handler registry.
type OptimizationType string

const (
	TypeHyperparameter   OptimizationType = "hyperparameter"
	TypeFeatureSelection OptimizationType = "feature_selection"
	TypeStrategyWeights  OptimizationType = "strategy_weights"
	TypeModelRetrain     OptimizationType = "model_retrain"
	TypeRiskParams       OptimizationType = "risk_params"
)

// TaskStatus is the execution state of a task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Frequency is the recurrence cadence of a task
type Frequency string

const (
	FrequencyMinute Frequency = "minute" // test/debug cadence
	FrequencyHourly Frequency = "hourly"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Offset returns the duration between runs for this frequency.
// Unknown frequencies fall back to daily.
func (f Frequency) Offset() time.Duration {
	switch f {
	case FrequencyMinute:
		return time.Minute
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// maxConsecutiveFailures is the auto-disable threshold
const maxConsecutiveFailures = 5

// Task is a recurring optimization unit bound to a component and cadence.
// The registry owns the canonical state; everything handed out by registry
// methods is a copy.
type Task struct {
	ID          string                 `json:"task_id"`
	Type        OptimizationType       `json:"task_type"`
	ComponentID string                 `json:"component_id"`
	Frequency   Frequency              `json:"frequency"`
	Priority    int                    `json:"priority"` // advisory only, never used for dispatch ordering
	Config      map[string]interface{} `json:"config,omitempty"`

	LastRunAt           *time.Time             `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time             `json:"next_run_at,omitempty"`
	Status              TaskStatus             `json:"status"`
	LastResult          map[string]interface{} `json:"last_result,omitempty"`
	LastError           string                 `json:"last_error,omitempty"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	Enabled             bool                   `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Info returns the immutable identity payload passed to notifications
func (t *Task) Info() notify.TaskInfo {
	return notify.TaskInfo{
		ID:          t.ID,
		Type:        string(t.Type),
		ComponentID: t.ComponentID,
		Frequency:   string(t.Frequency),
		Priority:    t.Priority,
	}
}

// Clone returns a deep copy safe to hand outside the registry lock
func (t *Task) Clone() *Task {
	c := *t
	if t.LastRunAt != nil {
		lr := *t.LastRunAt
		c.LastRunAt = &lr
	}
	if t.NextRunAt != nil {
		nr := *t.NextRunAt
		c.NextRunAt = &nr
	}
	if t.Config != nil {
		c.Config = make(map[string]interface{}, len(t.Config))
		for k, v := range t.Config {
			c.Config[k] = v
		}
	}
	if t.LastResult != nil {
		c.LastResult = make(map[string]interface{}, len(t.LastResult))
		for k, v := range t.LastResult {
			c.LastResult[k] = v
		}
	}
	return &c
}

// ImprovementEvent is one audit-log record of an automated improvement
type ImprovementEvent struct {
	EventType     string                 `json:"event_type"`
	ComponentType string                 `json:"component_type"`
	ComponentID   string                 `json:"component_id"`
	TriggerReason string                 `json:"trigger_reason"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Automated     bool                   `json:"automated"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Store is the persistence capability consumed by the registry and engine.
// Store failures are logged by callers, never propagated as execution
// failures.
type Store interface {
	UpsertTask(task *Task) error
	DeleteTask(taskID string) error
	AppendEvent(event ImprovementEvent) error
}

// NoopStore satisfies Store without persisting anything
type NoopStore struct{}

func (NoopStore) UpsertTask(*Task) error           { return nil }
func (NoopStore) DeleteTask(string) error          { return nil }
func (NoopStore) AppendEvent(ImprovementEvent) error { return nil }
