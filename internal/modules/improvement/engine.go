package improvement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/metrics"
	"github.com/quantflow/optimizer/internal/notify"
)

// Engine polls the registry on a fixed interval and dispatches due tasks
// concurrently. The poll loop never waits for task completion; the same
// task never runs twice concurrently because dispatch goes through the
// registry's atomic acquire.
type Engine struct {
	registry *Registry
	handlers *HandlerRegistry
	store    Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger

	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// EngineConfig holds engine construction parameters
type EngineConfig struct {
	Registry *Registry
	Handlers *HandlerRegistry
	Store    Store
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
	Interval time.Duration
}

// NewEngine creates an engine. Interval defaults to one minute.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Store == nil {
		cfg.Store = NoopStore{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	return &Engine{
		registry: cfg.Registry,
		handlers: cfg.Handlers,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		log:      cfg.Log.With().Str("component", "improvement_engine").Logger(),
		interval: cfg.Interval,
		now:      time.Now,
	}
}

// Start launches the poll loop. Calling Start on a running engine is a
// no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	e.log.Info().Dur("interval", e.interval).Msg("Improvement engine started")
	e.notifier.EngineStarted()

	go e.loop(stop)
}

// Stop halts future polling. In-flight task executions are not cancelled.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	e.mu.Unlock()

	e.log.Info().Msg("Improvement engine stopped")
	e.notifier.EngineStopped()
}

// Running reports whether the poll loop is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(stop chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one poll pass: scan for due tasks and dispatch each in its own
// goroutine. A panic inside the scan is recovered so the loop survives.
func (e *Engine) Tick() {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error().Interface("panic", rec).Msg("Recovered panic in engine poll")
		}
	}()

	now := e.now()
	for _, id := range e.registry.DueTaskIDs(now) {
		task, ok := e.registry.AcquireForRun(id, now)
		if !ok {
			continue
		}
		e.wg.Add(1)
		go func(t *Task) {
			defer e.wg.Done()
			e.execute(t)
		}(task)
	}
}

// Wait blocks until all dispatched executions have finished. Used by tests
// and shutdown paths that want a quiescent engine.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// execute runs a single task to completion and records the outcome. The
// snapshot passed in was taken at acquire time; all state updates go back
// through the registry.
func (e *Engine) execute(task *Task) {
	e.log.Info().
		Str("task_id", task.ID).
		Str("task_type", string(task.Type)).
		Msg("Executing task")
	e.notifier.TaskStarted(task.Info())
	if e.metrics != nil {
		e.metrics.RunningTasks.Inc()
		defer e.metrics.RunningTasks.Dec()
	}

	started := e.now()
	result, err := e.runHandler(task)
	duration := e.now().Sub(started)
	if e.metrics != nil {
		e.metrics.TaskDuration.WithLabelValues(string(task.Type)).Observe(duration.Seconds())
	}

	if err != nil {
		e.recordFailure(task, err)
		return
	}
	e.recordSuccess(task, result)
}

// runHandler invokes the handler for the task's type, converting a missing
// handler or a handler panic into an ordinary error.
func (e *Engine) runHandler(task *Task) (result map[string]interface{}, err error) {
	handler, ok := e.handlers.Get(task.Type)
	if !ok {
		return nil, fmt.Errorf("no handler registered for task type %q", task.Type)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()

	return handler.Run(context.Background(), task)
}

func (e *Engine) recordSuccess(task *Task, result map[string]interface{}) {
	updated := e.registry.CompleteRun(task.ID, result)
	if updated == nil {
		e.log.Warn().Str("task_id", task.ID).Msg("Task vanished during execution")
		return
	}

	if err := e.store.AppendEvent(ImprovementEvent{
		EventType:     fmt.Sprintf("%s_completed", task.Type),
		ComponentType: string(task.Type),
		ComponentID:   task.ComponentID,
		TriggerReason: "scheduled_optimization",
		Metrics:       result,
		Automated:     true,
		CreatedAt:     e.now(),
	}); err != nil {
		e.log.Error().Err(err).Str("task_id", task.ID).Msg("Failed to log improvement event")
	}

	e.log.Info().Str("task_id", task.ID).Msg("Task completed")
	e.notifier.TaskCompleted(updated.Info(), result)
	if e.metrics != nil {
		e.metrics.TasksCompleted.WithLabelValues(string(task.Type)).Inc()
	}
}

func (e *Engine) recordFailure(task *Task, execErr error) {
	updated, disabled := e.registry.FailRun(task.ID, execErr.Error())
	if updated == nil {
		e.log.Warn().Str("task_id", task.ID).Msg("Task vanished during execution")
		return
	}

	e.log.Error().
		Err(execErr).
		Str("task_id", task.ID).
		Int("consecutive_failures", updated.ConsecutiveFailures).
		Msg("Task failed")
	e.notifier.TaskFailed(updated.Info(), execErr)
	if e.metrics != nil {
		e.metrics.TasksFailed.WithLabelValues(string(task.Type)).Inc()
	}

	if disabled {
		e.log.Warn().Str("task_id", task.ID).Msg("Task disabled after repeated failures")
		e.notifier.TaskDisabled(updated.Info())
		if e.metrics != nil {
			e.metrics.TasksDisabled.Inc()
		}
	}
}
