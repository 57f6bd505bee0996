package scheduler

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/optimizer/internal/database"
	"github.com/quantflow/optimizer/internal/notify"
)

type alertCountingNotifier struct {
	notify.Noop
	mu     sync.Mutex
	alerts []string
}

func (n *alertCountingNotifier) SystemAlert(title, _ string, _ notify.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, title)
}

func newHealthCheckDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthCheckJobHealthyDatabase(t *testing.T) {
	db := newHealthCheckDB(t)
	notifier := &alertCountingNotifier{}
	job := NewHealthCheckJob(db, notifier, zerolog.Nop())

	assert.Equal(t, "health_check", job.Name())
	require.NoError(t, job.Run())
	assert.Empty(t, notifier.alerts, "a healthy database raises no alerts")
}

func TestWALCheckpointScansThreeColumns(t *testing.T) {
	db := newHealthCheckDB(t)

	// Write something so the WAL has content to checkpoint
	_, err := db.Conn().Exec(
		"INSERT INTO improvement_events (event_type, component_type, component_id, trigger_reason, automated, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		"hyperparameter_completed", "hyperparameter", "c1", "scheduled_optimization", 1, "2026-03-01T00:00:00Z")
	require.NoError(t, err)

	var busy, walFrames, checkpointed int
	err = db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &walFrames, &checkpointed)
	require.NoError(t, err, "wal_checkpoint returns exactly busy, log, checkpointed")
	assert.Equal(t, 0, busy)
	assert.GreaterOrEqual(t, walFrames, 0)
	assert.GreaterOrEqual(t, checkpointed, 0)
}
