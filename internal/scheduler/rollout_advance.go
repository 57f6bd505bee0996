package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/modules/pipeline"
)

// RolloutAdvanceJob ticks the rollout controller so staged deployments
// move through their canary and ramp windows.
type RolloutAdvanceJob struct {
	controller *pipeline.Controller
	log        zerolog.Logger
}

// NewRolloutAdvanceJob creates a rollout advance job
func NewRolloutAdvanceJob(controller *pipeline.Controller, log zerolog.Logger) *RolloutAdvanceJob {
	return &RolloutAdvanceJob{
		controller: controller,
		log:        log.With().Str("job", "rollout_advance").Logger(),
	}
}

// Name returns the job name
func (j *RolloutAdvanceJob) Name() string {
	return "rollout_advance"
}

// Run advances every due rollout
func (j *RolloutAdvanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.controller.Advance(ctx, time.Now())
	return nil
}
