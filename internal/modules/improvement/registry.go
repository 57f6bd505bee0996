package improvement

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/notify"
)

// Registry owns the canonical state of all optimization tasks. Every state
// transition of a task happens inside the registry lock, so the enabled /
// not-running / due check and the switch to running are a single atomic
// step. That closes the double-dispatch window two overlapping poll ticks
// would otherwise have.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string // insertion order for iteration

	store    Store
	notifier notify.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewRegistry creates a task registry
func NewRegistry(store Store, notifier notify.Notifier, log zerolog.Logger) *Registry {
	if store == nil {
		store = NoopStore{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Registry{
		tasks:    make(map[string]*Task),
		store:    store,
		notifier: notifier,
		log:      log.With().Str("component", "task_registry").Logger(),
		now:      time.Now,
	}
}

// Add registers a new task, assigns its first run time, persists it and
// returns the task ID. A missing ID is generated.
func (r *Registry) Add(task *Task) (string, error) {
	if task == nil {
		return "", fmt.Errorf("task must not be nil")
	}

	r.mu.Lock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := r.tasks[task.ID]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("task %s already registered", task.ID)
	}

	now := r.now()
	next := now.Add(task.Frequency.Offset())
	task.NextRunAt = &next
	if task.Status == "" {
		task.Status = StatusPending
	}
	task.Enabled = true
	task.CreatedAt = now
	task.UpdatedAt = now

	stored := task.Clone()
	r.tasks[task.ID] = stored
	r.order = append(r.order, task.ID)
	r.mu.Unlock()

	r.persist(stored)
	r.log.Info().
		Str("task_id", task.ID).
		Str("task_type", string(task.Type)).
		Str("frequency", string(task.Frequency)).
		Msg("Task added")
	r.notifier.TaskAdded(task.Info())

	return task.ID, nil
}

// Remove deletes a task. Removing an unknown ID is a no-op and emits no
// notification.
func (r *Registry) Remove(taskID string) {
	r.mu.Lock()
	task, ok := r.tasks[taskID]
	if ok {
		delete(r.tasks, taskID)
		for i, id := range r.order {
			if id == taskID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if err := r.store.DeleteTask(taskID); err != nil {
		r.log.Error().Err(err).Str("task_id", taskID).Msg("Failed to delete task from store")
	}
	r.log.Info().Str("task_id", taskID).Msg("Task removed")
	r.notifier.TaskRemoved(task.Info())
}

// Get returns a copy of a task by ID
func (r *Registry) Get(taskID string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// List returns copies of all tasks in insertion order
func (r *Registry) List() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id].Clone())
	}
	return out
}

// Summary returns task counts per frequency
func (r *Registry) Summary() map[Frequency]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Frequency]int)
	for _, task := range r.tasks {
		counts[task.Frequency]++
	}
	return counts
}

// SetEnabled manually enables or disables a task. Re-enabling resets the
// failure counter so the task gets a fresh disable budget.
func (r *Registry) SetEnabled(taskID string, enabled bool) error {
	r.mu.Lock()
	task, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("task %s not found", taskID)
	}
	task.Enabled = enabled
	if enabled {
		task.ConsecutiveFailures = 0
	}
	task.UpdatedAt = r.now()
	snapshot := task.Clone()
	r.mu.Unlock()

	r.persist(snapshot)
	return nil
}

// DueTaskIDs returns the IDs of tasks eligible for dispatch at the given
// instant: enabled, not running, next run due. Order follows insertion
// order, not priority.
func (r *Registry) DueTaskIDs(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []string
	for _, id := range r.order {
		task := r.tasks[id]
		if !task.Enabled || task.Status == StatusRunning {
			continue
		}
		if task.NextRunAt != nil && !task.NextRunAt.After(now) {
			due = append(due, id)
		}
	}
	return due
}

// AcquireForRun atomically re-checks eligibility and transitions the task
// to running. Returns a snapshot of the task and whether the caller won the
// dispatch. A false return means another executor got there first, the task
// was disabled, or it is no longer due.
func (r *Registry) AcquireForRun(taskID string, now time.Time) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok || !task.Enabled || task.Status == StatusRunning {
		return nil, false
	}
	if task.NextRunAt == nil || task.NextRunAt.After(now) {
		return nil, false
	}

	task.Status = StatusRunning
	task.LastRunAt = &now
	task.UpdatedAt = now
	return task.Clone(), true
}

// CompleteRun records a successful execution: resets the failure counter
// and recomputes the next run time. Returns the updated snapshot.
func (r *Registry) CompleteRun(taskID string, result map[string]interface{}) *Task {
	r.mu.Lock()
	task, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return nil
	}

	now := r.now()
	task.Status = StatusCompleted
	task.LastResult = result
	task.LastError = ""
	task.ConsecutiveFailures = 0
	var next time.Time
	if task.LastRunAt != nil {
		next = task.LastRunAt.Add(task.Frequency.Offset())
	} else {
		next = now.Add(task.Frequency.Offset())
	}
	task.NextRunAt = &next
	task.UpdatedAt = now
	snapshot := task.Clone()
	r.mu.Unlock()

	r.persist(snapshot)
	return snapshot
}

// FailRun records a failed execution. The next run time is deliberately
// left untouched: a failed task stays due and keeps retrying on subsequent
// polls until it succeeds or hits the disable threshold. Returns the
// updated snapshot and whether this failure crossed the disable threshold.
func (r *Registry) FailRun(taskID string, errMsg string) (*Task, bool) {
	r.mu.Lock()
	task, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}

	task.Status = StatusFailed
	task.LastError = errMsg
	task.ConsecutiveFailures++
	disabled := false
	if task.ConsecutiveFailures >= maxConsecutiveFailures && task.Enabled {
		task.Enabled = false
		disabled = true
	}
	task.UpdatedAt = r.now()
	snapshot := task.Clone()
	r.mu.Unlock()

	r.persist(snapshot)
	return snapshot, disabled
}

// LoadFrom seeds the registry from persisted tasks at boot. Stuck
// "running" states from a crashed process are reset to pending so the
// tasks become dispatchable again. No notifications are emitted.
func (r *Registry) LoadFrom(tasks []*Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range tasks {
		if _, exists := r.tasks[task.ID]; exists {
			continue
		}
		stored := task.Clone()
		if stored.Status == StatusRunning {
			stored.Status = StatusPending
		}
		r.tasks[stored.ID] = stored
		r.order = append(r.order, stored.ID)
	}
}

func (r *Registry) persist(task *Task) {
	if err := r.store.UpsertTask(task); err != nil {
		r.log.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist task")
	}
}
