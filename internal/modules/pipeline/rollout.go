package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/metrics"
	"github.com/quantflow/optimizer/internal/notify"
)

const (
	abFailureReason      = "A/B test results did not meet success criteria"
	rollbackFollowupNote = "Review and fix issues before retrying"
)

// RolloutStore persists rollout state between controller ticks
type RolloutStore interface {
	Save(rollout *Rollout) error
	Due(now time.Time) ([]*Rollout, error)
	Get(rolloutID string) (*Rollout, error)
	List(limit int) ([]*Rollout, error)
}

// Controller drives staged deployments through canary and ramp windows.
// Begin starts a rollout and returns immediately; Advance, called on a
// scheduler tick, moves each due rollout one step. State lives in the
// store, so an in-progress rollout survives a process restart.
type Controller struct {
	deployer Deployer
	abTester ABTester
	store    RolloutStore
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      zerolog.Logger

	canaryWindow time.Duration
	rampWindow   time.Duration
	now          func() time.Time
}

// ControllerConfig holds rollout controller construction parameters
type ControllerConfig struct {
	Deployer     Deployer
	ABTester     ABTester
	Store        RolloutStore
	Notifier     notify.Notifier
	Metrics      *metrics.Metrics
	Log          zerolog.Logger
	CanaryWindow time.Duration
	RampWindow   time.Duration
}

// NewController creates a rollout controller. Windows default to 1h canary
// and 2h ramp.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.CanaryWindow <= 0 {
		cfg.CanaryWindow = time.Hour
	}
	if cfg.RampWindow <= 0 {
		cfg.RampWindow = 2 * time.Hour
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	return &Controller{
		deployer:     cfg.Deployer,
		abTester:     cfg.ABTester,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		log:          cfg.Log.With().Str("component", "rollout_controller").Logger(),
		canaryWindow: cfg.CanaryWindow,
		rampWindow:   cfg.RampWindow,
		now:          time.Now,
	}
}

// Begin runs the synchronous head of a deployment: staging, smoke tests,
// and the 10% A/B test. On success it persists a canary rollout whose
// first check is one canary window away. The returned actions list what
// happened, including on the error path.
func (c *Controller) Begin(ctx context.Context, optimizations map[string]interface{}) (*Rollout, []string, error) {
	var actions []string

	if err := c.deployer.DeployToStaging(ctx, optimizations); err != nil {
		return nil, actions, fmt.Errorf("staging deploy failed: %w", err)
	}
	actions = append(actions, "Deployed to staging")

	passed, err := c.deployer.RunSmokeTests(ctx)
	if err != nil {
		return nil, actions, fmt.Errorf("smoke tests errored: %w", err)
	}
	if !passed {
		actions = append(actions, "Smoke tests: FAILED")
		return nil, actions, fmt.Errorf("smoke tests failed, aborting deployment")
	}
	actions = append(actions, "Smoke tests: PASSED")

	abTestID, err := c.abTester.Start(ctx, optimizations, 10)
	if err != nil {
		return nil, actions, fmt.Errorf("failed to start ab test: %w", err)
	}
	actions = append(actions, fmt.Sprintf("Started A/B test: %s", abTestID))

	now := c.now()
	nextCheck := now.Add(c.canaryWindow)
	rollout := &Rollout{
		ID:            uuid.NewString(),
		ABTestID:      abTestID,
		Status:        RolloutCanary,
		Optimizations: optimizations,
		ActionsTaken:  actions,
		NextCheckAt:   &nextCheck,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.Save(rollout); err != nil {
		return nil, actions, fmt.Errorf("failed to persist rollout: %w", err)
	}

	c.log.Info().
		Str("rollout_id", rollout.ID).
		Str("ab_test_id", abTestID).
		Time("next_check_at", nextCheck).
		Msg("Canary rollout started at 10% traffic")
	c.notifier.RolloutStarted(rollout.ID, abTestID)

	return rollout, actions, nil
}

// Advance moves every due rollout one step: evaluate the A/B test, then
// ramp, promote or roll back. Errors on one rollout never block the rest.
func (c *Controller) Advance(ctx context.Context, now time.Time) {
	due, err := c.store.Due(now)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to load due rollouts")
		return
	}

	for _, rollout := range due {
		if err := c.advanceOne(ctx, rollout, now); err != nil {
			c.log.Error().Err(err).Str("rollout_id", rollout.ID).Msg("Failed to advance rollout")
		}
	}
}

func (c *Controller) advanceOne(ctx context.Context, rollout *Rollout, now time.Time) error {
	ok, err := c.abTester.Evaluate(ctx, rollout.ABTestID)
	if err != nil {
		// Evaluation errors are transient; the rollout stays due and is
		// retried on the next tick.
		return fmt.Errorf("ab test evaluation failed: %w", err)
	}

	if !ok {
		return c.rollBack(ctx, rollout, now)
	}

	switch rollout.Status {
	case RolloutCanary:
		return c.ramp(ctx, rollout, now)
	case RolloutRamping:
		return c.promote(ctx, rollout, now)
	default:
		return nil
	}
}

func (c *Controller) ramp(ctx context.Context, rollout *Rollout, now time.Time) error {
	if err := c.abTester.UpdateTraffic(ctx, rollout.ABTestID, 50); err != nil {
		return fmt.Errorf("failed to ramp traffic: %w", err)
	}

	rollout.Status = RolloutRamping
	rollout.ActionsTaken = append(rollout.ActionsTaken, "Increased traffic to 50%")
	nextCheck := now.Add(c.rampWindow)
	rollout.NextCheckAt = &nextCheck
	rollout.UpdatedAt = now
	if err := c.store.Save(rollout); err != nil {
		return fmt.Errorf("failed to persist rollout: %w", err)
	}

	c.log.Info().
		Str("rollout_id", rollout.ID).
		Time("next_check_at", nextCheck).
		Msg("Rollout ramped to 50% traffic")
	c.notifier.RolloutRamped(rollout.ID)
	return nil
}

func (c *Controller) promote(ctx context.Context, rollout *Rollout, now time.Time) error {
	if err := c.abTester.Promote(ctx, rollout.ABTestID); err != nil {
		return fmt.Errorf("failed to promote: %w", err)
	}

	rollout.Status = RolloutProduction
	rollout.ActionsTaken = append(rollout.ActionsTaken, "Promoted to 100% production traffic")
	rollout.NextCheckAt = nil
	rollout.UpdatedAt = now

	if live, err := c.deployer.LiveMetrics(ctx); err != nil {
		c.log.Error().Err(err).Str("rollout_id", rollout.ID).Msg("Failed to fetch live metrics")
	} else {
		rollout.MetricsAfter = live
	}

	if err := c.store.Save(rollout); err != nil {
		return fmt.Errorf("failed to persist rollout: %w", err)
	}

	c.log.Info().Str("rollout_id", rollout.ID).Msg("Rollout promoted to production")
	c.notifier.RolloutPromoted(rollout.ID, rollout.MetricsAfter)
	c.notifier.SystemAlert("Rollout Promoted",
		fmt.Sprintf("Rollout %s reached 100%% production traffic", rollout.ID),
		notify.SeveritySuccess)
	if c.metrics != nil {
		c.metrics.RolloutsTotal.WithLabelValues(string(RolloutProduction)).Inc()
	}
	return nil
}

func (c *Controller) rollBack(ctx context.Context, rollout *Rollout, now time.Time) error {
	if err := c.abTester.Rollback(ctx, rollout.ABTestID); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	rollout.Status = RolloutRolledBack
	rollout.ActionsTaken = append(rollout.ActionsTaken, "Rolled back due to A/B test failure")
	rollout.Error = abFailureReason
	rollout.NextCheckAt = nil
	rollout.UpdatedAt = now
	if err := c.store.Save(rollout); err != nil {
		return fmt.Errorf("failed to persist rollout: %w", err)
	}

	c.log.Warn().Str("rollout_id", rollout.ID).Msg("Rollout rolled back")
	c.notifier.RolloutRolledBack(rollout.ID, abFailureReason)
	c.notifier.SystemAlert("Rollout Rolled Back",
		fmt.Sprintf("Rollout %s failed its A/B evaluation and was rolled back. %s",
			rollout.ID, rollbackFollowupNote),
		notify.SeverityWarning)
	if c.metrics != nil {
		c.metrics.RolloutsTotal.WithLabelValues(string(RolloutRolledBack)).Inc()
	}
	return nil
}
