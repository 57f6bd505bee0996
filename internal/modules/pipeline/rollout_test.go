package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/optimizer/internal/notify"
)

type controllerFixture struct {
	ctrl     *Controller
	ab       *scriptedABTester
	deployer *fakeDeployer
	store    *memoryRolloutStore
	recorder *alertRecorder
	clock    time.Time
}

func newControllerFixture(verdicts ...bool) *controllerFixture {
	f := &controllerFixture{
		ab:       newScriptedABTester(verdicts...),
		deployer: &fakeDeployer{smokePass: true},
		store:    newMemoryRolloutStore(),
		recorder: &alertRecorder{},
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.ctrl = NewController(ControllerConfig{
		Deployer:     f.deployer,
		ABTester:     f.ab,
		Store:        f.store,
		Notifier:     f.recorder,
		Log:          zerolog.Nop(),
		CanaryWindow: time.Hour,
		RampWindow:   2 * time.Hour,
	})
	f.ctrl.now = func() time.Time { return f.clock }
	return f
}

func (f *controllerFixture) begin(t *testing.T) *Rollout {
	t.Helper()
	rollout, _, err := f.ctrl.Begin(context.Background(), map[string]interface{}{"hyperparameters": "tuned"})
	require.NoError(t, err)
	return rollout
}

func TestControllerBeginPersistsCanary(t *testing.T) {
	f := newControllerFixture()

	rollout, actions, err := f.ctrl.Begin(context.Background(), map[string]interface{}{"model": "v4"})
	require.NoError(t, err)

	assert.Equal(t, RolloutCanary, rollout.Status)
	assert.Equal(t, "ab_test_123", rollout.ABTestID)
	assert.Equal(t, 10, f.ab.traffic["ab_test_123"])
	require.NotNil(t, rollout.NextCheckAt)
	assert.Equal(t, f.clock.Add(time.Hour), *rollout.NextCheckAt)
	assert.Equal(t, []string{
		"Deployed to staging",
		"Smoke tests: PASSED",
		"Started A/B test: ab_test_123",
	}, actions)

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, RolloutCanary, stored.Status)
	assert.Equal(t, []string{"started"}, f.recorder.rolloutEvents)
}

func TestControllerBeginSmokeFailure(t *testing.T) {
	f := newControllerFixture()
	f.deployer.smokePass = false

	rollout, actions, err := f.ctrl.Begin(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, rollout)
	assert.Contains(t, err.Error(), "smoke tests failed")
	assert.Equal(t, []string{"Deployed to staging", "Smoke tests: FAILED"}, actions)

	// No A/B test was started, so there is nothing to roll back
	assert.Empty(t, f.ab.traffic)
	assert.Zero(t, f.ab.rollbacks)
}

func TestControllerAdvanceBeforeDueIsNoOp(t *testing.T) {
	f := newControllerFixture(true)
	rollout := f.begin(t)

	f.ctrl.Advance(context.Background(), f.clock.Add(30*time.Minute))

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutCanary, stored.Status)
	assert.Zero(t, f.ab.evalCalls)
}

func TestControllerCanaryRampsToFiftyPercent(t *testing.T) {
	f := newControllerFixture(true)
	rollout := f.begin(t)

	dueAt := f.clock.Add(time.Hour)
	f.ctrl.Advance(context.Background(), dueAt)

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutRamping, stored.Status)
	assert.Equal(t, 50, f.ab.traffic["ab_test_123"])
	assert.Contains(t, stored.ActionsTaken, "Increased traffic to 50%")
	require.NotNil(t, stored.NextCheckAt)
	assert.Equal(t, dueAt.Add(2*time.Hour), *stored.NextCheckAt)
	assert.Equal(t, []string{"started", "ramped"}, f.recorder.rolloutEvents)
}

func TestControllerRampingPromotesToProduction(t *testing.T) {
	f := newControllerFixture(true, true)
	f.deployer.liveMetrics = map[string]float64{"win_rate": 0.61}
	rollout := f.begin(t)

	rampAt := f.clock.Add(time.Hour)
	f.ctrl.Advance(context.Background(), rampAt)
	f.ctrl.Advance(context.Background(), rampAt.Add(2*time.Hour))

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutProduction, stored.Status)
	assert.True(t, stored.Terminal())
	assert.Nil(t, stored.NextCheckAt)
	assert.Equal(t, 1, f.ab.promotes)
	assert.Equal(t, 100, f.ab.traffic["ab_test_123"])
	assert.Equal(t, 0.61, stored.MetricsAfter["win_rate"])
	assert.Contains(t, stored.ActionsTaken, "Promoted to 100% production traffic")
	assert.Contains(t, f.recorder.alerts, "Rollout Promoted")
	assert.Equal(t, []string{"started", "ramped", "promoted"}, f.recorder.rolloutEvents)
}

func TestControllerFailedEvaluationRollsBack(t *testing.T) {
	f := newControllerFixture(false)
	rollout := f.begin(t)

	f.ctrl.Advance(context.Background(), f.clock.Add(time.Hour))

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutRolledBack, stored.Status)
	assert.True(t, stored.Terminal())
	assert.Equal(t, "A/B test results did not meet success criteria", stored.Error)
	assert.Contains(t, stored.ActionsTaken, "Rolled back due to A/B test failure")
	assert.Equal(t, 1, f.ab.rollbacks)
	assert.Contains(t, f.recorder.alerts, "Rollout Rolled Back")
	assert.Contains(t, f.recorder.rolloutEvents,
		"rolled_back:A/B test results did not meet success criteria")

	// The rollback alert tells the operator what to do next
	require.Len(t, f.recorder.alertMessages, 1)
	assert.Contains(t, f.recorder.alertMessages[0], "Review and fix issues before retrying")
}

func TestControllerFailedRampEvaluationRollsBack(t *testing.T) {
	f := newControllerFixture(true, false)
	rollout := f.begin(t)

	rampAt := f.clock.Add(time.Hour)
	f.ctrl.Advance(context.Background(), rampAt)
	f.ctrl.Advance(context.Background(), rampAt.Add(2*time.Hour))

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutRolledBack, stored.Status)
	assert.Equal(t, 1, f.ab.rollbacks)
	assert.Zero(t, f.ab.promotes)
}

func TestControllerEvaluationErrorLeavesRolloutDue(t *testing.T) {
	// One scripted verdict. The second evaluation call errors, which must
	// leave the rollout in place for the next tick.
	f := newControllerFixture(true)
	rollout := f.begin(t)

	rampAt := f.clock.Add(time.Hour)
	f.ctrl.Advance(context.Background(), rampAt)
	f.ctrl.Advance(context.Background(), rampAt.Add(2*time.Hour))

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutRamping, stored.Status)
	require.NotNil(t, stored.NextCheckAt)

	due, err := f.store.Due(rampAt.Add(3 * time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, rollout.ID, due[0].ID)
}

func TestControllerSurvivesRestart(t *testing.T) {
	f := newControllerFixture(true)
	rollout := f.begin(t)

	// A fresh controller over the same store picks up the in-flight rollout
	resumed := NewController(ControllerConfig{
		Deployer:     f.deployer,
		ABTester:     f.ab,
		Store:        f.store,
		Notifier:     notify.Noop{},
		Log:          zerolog.Nop(),
		CanaryWindow: time.Hour,
		RampWindow:   2 * time.Hour,
	})
	resumed.Advance(context.Background(), f.clock.Add(time.Hour))

	stored, err := f.store.Get(rollout.ID)
	require.NoError(t, err)
	assert.Equal(t, RolloutRamping, stored.Status)
}
