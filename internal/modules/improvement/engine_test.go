package improvement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	registry *Registry
	engine   *Engine
	notifier *recordingNotifier
	handlers *HandlerRegistry
	clock    time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		notifier: &recordingNotifier{},
		handlers: NewHandlerRegistry(zerolog.Nop()),
		clock:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.registry = NewRegistry(NoopStore{}, f.notifier, zerolog.Nop())
	f.registry.now = func() time.Time { return f.clock }
	f.engine = NewEngine(EngineConfig{
		Registry: f.registry,
		Handlers: f.handlers,
		Notifier: f.notifier,
		Log:      zerolog.Nop(),
	})
	f.engine.now = func() time.Time { return f.clock }
	return f
}

// tick advances the fake clock and runs one poll pass to completion
func (f *engineFixture) tick(d time.Duration) {
	f.clock = f.clock.Add(d)
	f.engine.Tick()
	f.engine.Wait()
}

func (f *engineFixture) addTask(t *testing.T, taskType OptimizationType, freq Frequency) string {
	t.Helper()
	id, err := f.registry.Add(&Task{Type: taskType, ComponentID: "component", Frequency: freq})
	require.NoError(t, err)
	return id
}

func TestEngineExecutesDueTask(t *testing.T) {
	f := newEngineFixture(t)
	id := f.addTask(t, TypeHyperparameter, FrequencyMinute)

	f.tick(time.Minute)

	task, ok := f.registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.LastResult)
	_, _, completed := f.notifier.counts()
	assert.Equal(t, 1, completed)
}

func TestEngineFiveFailuresDisableTaskOnce(t *testing.T) {
	f := newEngineFixture(t)
	f.handlers.Register(TypeRiskParams, HandlerFunc(func(ctx context.Context, task *Task) (map[string]interface{}, error) {
		return nil, errors.New("always fails")
	}))
	id := f.addTask(t, TypeRiskParams, FrequencyMinute)

	// A failed task keeps its original next_run_at, so it stays due and
	// retries on every subsequent poll until the disable threshold.
	f.clock = f.clock.Add(time.Minute)
	for i := 0; i < maxConsecutiveFailures; i++ {
		f.engine.Tick()
		f.engine.Wait()
	}

	task, ok := f.registry.Get(id)
	require.True(t, ok)
	assert.False(t, task.Enabled)
	assert.Equal(t, maxConsecutiveFailures, task.ConsecutiveFailures)
	assert.Equal(t, "always fails", task.LastError)

	failed, disabled, _ := f.notifier.counts()
	assert.Equal(t, maxConsecutiveFailures, failed)
	assert.Equal(t, 1, disabled, "exactly one task-disabled notification")

	// A sixth poll must not dispatch the disabled task
	f.engine.Tick()
	f.engine.Wait()
	failed, _, _ = f.notifier.counts()
	assert.Equal(t, maxConsecutiveFailures, failed)
}

func TestEngineSuccessResetsFailureCounter(t *testing.T) {
	f := newEngineFixture(t)
	attempts := 0
	f.handlers.Register(TypeModelRetrain, HandlerFunc(func(ctx context.Context, task *Task) (map[string]interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return map[string]interface{}{"attempt": attempts}, nil
	}))
	id := f.addTask(t, TypeModelRetrain, FrequencyMinute)

	f.clock = f.clock.Add(time.Minute)
	for i := 0; i < 3; i++ {
		f.engine.Tick()
		f.engine.Wait()
	}

	task, ok := f.registry.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 0, task.ConsecutiveFailures)
	assert.True(t, task.Enabled)
	assert.Empty(t, task.LastError)
}

func TestEngineFailureKeepsNextRunAt(t *testing.T) {
	f := newEngineFixture(t)
	f.handlers.Register(TypeFeatureSelection, HandlerFunc(func(ctx context.Context, task *Task) (map[string]interface{}, error) {
		return nil, errors.New("nope")
	}))
	id := f.addTask(t, TypeFeatureSelection, FrequencyHourly)

	before, _ := f.registry.Get(id)
	originalNext := *before.NextRunAt

	f.tick(time.Hour)

	after, _ := f.registry.Get(id)
	require.NotNil(t, after.NextRunAt)
	assert.Equal(t, originalNext, *after.NextRunAt)
}

func TestEngineSuccessRecomputesNextRunFromLastRun(t *testing.T) {
	f := newEngineFixture(t)
	id := f.addTask(t, TypeStrategyWeights, FrequencyHourly)

	f.tick(time.Hour)

	task, _ := f.registry.Get(id)
	require.NotNil(t, task.LastRunAt)
	require.NotNil(t, task.NextRunAt)
	assert.Equal(t, task.LastRunAt.Add(time.Hour), *task.NextRunAt)
}

func TestEngineMissingHandlerIsFailure(t *testing.T) {
	f := newEngineFixture(t)
	id := f.addTask(t, OptimizationType("exotic"), FrequencyMinute)

	f.tick(time.Minute)

	task, _ := f.registry.Get(id)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Contains(t, task.LastError, "no handler registered")
	assert.Equal(t, 1, task.ConsecutiveFailures)
}

func TestEngineHandlerPanicBecomesFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.handlers.Register(TypeHyperparameter, HandlerFunc(func(ctx context.Context, task *Task) (map[string]interface{}, error) {
		panic("handler exploded")
	}))
	id := f.addTask(t, TypeHyperparameter, FrequencyMinute)

	f.tick(time.Minute)

	task, _ := f.registry.Get(id)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Contains(t, task.LastError, "handler panicked")
}

func TestEngineStartStopLifecycle(t *testing.T) {
	f := newEngineFixture(t)

	assert.False(t, f.engine.Running())
	f.engine.Start()
	assert.True(t, f.engine.Running())
	f.engine.Start() // no-op
	f.engine.Stop()
	assert.False(t, f.engine.Running())
	f.engine.Stop() // no-op

	assert.Equal(t, 1, f.notifier.started)
	assert.Equal(t, 1, f.notifier.stopped)
}

func TestEngineRunningTaskNotRedispatched(t *testing.T) {
	f := newEngineFixture(t)

	block := make(chan struct{})
	entered := make(chan struct{})
	f.handlers.Register(TypeModelRetrain, HandlerFunc(func(ctx context.Context, task *Task) (map[string]interface{}, error) {
		close(entered)
		<-block
		return map[string]interface{}{}, nil
	}))
	f.addTask(t, TypeModelRetrain, FrequencyMinute)

	f.clock = f.clock.Add(time.Minute)
	f.engine.Tick()
	<-entered

	// A second overlapping poll sees the task running and skips it
	f.engine.Tick()

	close(block)
	f.engine.Wait()

	assert.Equal(t, 1, f.notifier.taskStart)
}
