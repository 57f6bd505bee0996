package improvement

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/optimizer/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTaskRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db.Conn(), zerolog.Nop())

	lastRun := time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC)
	nextRun := lastRun.Add(24 * time.Hour)
	task := &Task{
		ID:          "task-1",
		Type:        TypeHyperparameter,
		ComponentID: "momentum_strategy",
		Frequency:   FrequencyDaily,
		Priority:    3,
		Config: map[string]interface{}{
			"param_space": "default",
			"trials":      int64(50),
		},
		LastRunAt: &lastRun,
		NextRunAt: &nextRun,
		Status:    StatusCompleted,
		LastResult: map[string]interface{}{
			"best_score": 0.74,
		},
		ConsecutiveFailures: 2,
		Enabled:             true,
		CreatedAt:           lastRun.Add(-48 * time.Hour),
		UpdatedAt:           lastRun,
	}

	require.NoError(t, repo.UpsertTask(task))

	loaded, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Type, got.Type)
	assert.Equal(t, task.ComponentID, got.ComponentID)
	assert.Equal(t, task.Frequency, got.Frequency)
	assert.Equal(t, task.Priority, got.Priority)
	assert.Equal(t, task.Status, got.Status)
	assert.Equal(t, task.ConsecutiveFailures, got.ConsecutiveFailures)
	assert.Equal(t, task.Enabled, got.Enabled)
	assert.Equal(t, "default", got.Config["param_space"])
	assert.Equal(t, 0.74, got.LastResult["best_score"])
	require.NotNil(t, got.LastRunAt)
	assert.True(t, got.LastRunAt.Equal(lastRun))
	require.NotNil(t, got.NextRunAt)
	assert.True(t, got.NextRunAt.Equal(nextRun))
}

func TestTaskRepositoryUpsertReplacesState(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db.Conn(), zerolog.Nop())

	now := time.Now().UTC()
	task := &Task{
		ID: "task-2", Type: TypeRiskParams, ComponentID: "risk", Frequency: FrequencyHourly,
		Status: StatusPending, Enabled: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.UpsertTask(task))

	task.Status = StatusFailed
	task.LastError = "backtest timeout"
	task.ConsecutiveFailures = 4
	task.Enabled = false
	require.NoError(t, repo.UpsertTask(task))

	loaded, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, StatusFailed, loaded[0].Status)
	assert.Equal(t, "backtest timeout", loaded[0].LastError)
	assert.Equal(t, 4, loaded[0].ConsecutiveFailures)
	assert.False(t, loaded[0].Enabled)
}

func TestTaskRepositoryDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db.Conn(), zerolog.Nop())

	now := time.Now().UTC()
	require.NoError(t, repo.UpsertTask(&Task{
		ID: "task-3", Type: TypeModelRetrain, ComponentID: "m", Frequency: FrequencyWeekly,
		Status: StatusPending, Enabled: true, CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, repo.DeleteTask("task-3"))
	require.NoError(t, repo.DeleteTask("task-3")) // idempotent

	loaded, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestTaskRepositoryEvents(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db.Conn(), zerolog.Nop())

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AppendEvent(ImprovementEvent{
			EventType:     "hyperparameter_completed",
			ComponentType: "hyperparameter",
			ComponentID:   "strategy_a",
			TriggerReason: "scheduled_optimization",
			Metrics:       map[string]interface{}{"run": int64(i)},
			Automated:     true,
			CreatedAt:     time.Now().UTC(),
		}))
	}

	events, err := repo.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first
	assert.EqualValues(t, 2, events[0].Metrics["run"])
	assert.True(t, events[0].Automated)
}
