package pipeline

import "time"

// Step identifies one stage of the optimization cycle
type Step string

const (
	StepAnalyze  Step = "analyze"
	StepIdentify Step = "identify"
	StepOptimize Step = "optimize"
	StepDeploy   Step = "deploy"
)

// Result is the outcome of one pipeline stage
type Result struct {
	Step            Step                   `json:"step"`
	Success         bool                   `json:"success"`
	Findings        map[string]interface{} `json:"findings"`
	Recommendations []string               `json:"recommendations"`
	ActionsTaken    []string               `json:"actions_taken"`
	MetricsBefore   map[string]float64     `json:"metrics_before"`
	MetricsAfter    map[string]float64     `json:"metrics_after"`
	Timestamp       time.Time              `json:"timestamp"`
	Error           string                 `json:"error,omitempty"`
}

// RolloutStatus tracks where a staged deployment sits in its lifecycle
type RolloutStatus string

const (
	RolloutCanary     RolloutStatus = "canary"     // 10% traffic, first window
	RolloutRamping    RolloutStatus = "ramping"    // 50% traffic, second window
	RolloutProduction RolloutStatus = "production" // promoted to 100%
	RolloutRolledBack RolloutStatus = "rolled_back"
)

// Rollout is a persisted staged-deployment record. The controller advances
// it through its monitoring windows on scheduler ticks instead of holding a
// goroutine asleep for hours.
type Rollout struct {
	ID            string                 `json:"id"`
	ABTestID      string                 `json:"ab_test_id"`
	Status        RolloutStatus          `json:"status"`
	Optimizations map[string]interface{} `json:"optimizations"`
	ActionsTaken  []string               `json:"actions_taken"`
	NextCheckAt   *time.Time             `json:"next_check_at,omitempty"`
	MetricsAfter  map[string]float64     `json:"metrics_after,omitempty"`
	Error         string                 `json:"error,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Terminal reports whether the rollout has finished, one way or the other
func (r *Rollout) Terminal() bool {
	return r.Status == RolloutProduction || r.Status == RolloutRolledBack
}
