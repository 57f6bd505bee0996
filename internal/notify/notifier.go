package notify

// Severity classifies system alerts
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// TaskInfo is the task identity passed to notifications. It deliberately
// carries no mutable task state so notifier implementations cannot race
// with the engine.
type TaskInfo struct {
	ID          string `json:"task_id"`
	Type        string `json:"task_type"`
	ComponentID string `json:"component_id"`
	Frequency   string `json:"frequency"`
	Priority    int    `json:"priority"`
}

// Notifier receives lifecycle events from the engine, the pipeline runner
// and the rollout controller. Every call is fire-and-forget: implementations
// must never block core logic, and callers ignore notifier failures.
type Notifier interface {
	EngineStarted()
	EngineStopped()
	TaskAdded(task TaskInfo)
	TaskRemoved(task TaskInfo)
	TaskStarted(task TaskInfo)
	TaskCompleted(task TaskInfo, result map[string]interface{})
	TaskFailed(task TaskInfo, err error)
	TaskDisabled(task TaskInfo)
	CycleStarted(strategyID string)
	CycleComplete(successfulSteps, totalSteps int)
	RolloutStarted(rolloutID, abTestID string)
	RolloutRamped(rolloutID string)
	RolloutPromoted(rolloutID string, metrics map[string]float64)
	RolloutRolledBack(rolloutID, reason string)
	SystemAlert(title, message string, severity Severity)
}

// Noop is the notifier used when nothing is configured.
type Noop struct{}

func (Noop) EngineStarted()                                 {}
func (Noop) EngineStopped()                                 {}
func (Noop) TaskAdded(TaskInfo)                             {}
func (Noop) TaskRemoved(TaskInfo)                           {}
func (Noop) TaskStarted(TaskInfo)                           {}
func (Noop) TaskCompleted(TaskInfo, map[string]interface{}) {}
func (Noop) TaskFailed(TaskInfo, error)                     {}
func (Noop) TaskDisabled(TaskInfo)                          {}
func (Noop) CycleStarted(string)                            {}
func (Noop) CycleComplete(int, int)                         {}
func (Noop) RolloutStarted(string, string)                  {}
func (Noop) RolloutRamped(string)                           {}
func (Noop) RolloutPromoted(string, map[string]float64)     {}
func (Noop) RolloutRolledBack(string, string)               {}
func (Noop) SystemAlert(string, string, Severity)           {}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) EngineStarted() {
	for _, n := range m {
		n.EngineStarted()
	}
}

func (m Multi) EngineStopped() {
	for _, n := range m {
		n.EngineStopped()
	}
}

func (m Multi) TaskAdded(t TaskInfo) {
	for _, n := range m {
		n.TaskAdded(t)
	}
}

func (m Multi) TaskRemoved(t TaskInfo) {
	for _, n := range m {
		n.TaskRemoved(t)
	}
}

func (m Multi) TaskStarted(t TaskInfo) {
	for _, n := range m {
		n.TaskStarted(t)
	}
}

func (m Multi) TaskCompleted(t TaskInfo, result map[string]interface{}) {
	for _, n := range m {
		n.TaskCompleted(t, result)
	}
}

func (m Multi) TaskFailed(t TaskInfo, err error) {
	for _, n := range m {
		n.TaskFailed(t, err)
	}
}

func (m Multi) TaskDisabled(t TaskInfo) {
	for _, n := range m {
		n.TaskDisabled(t)
	}
}

func (m Multi) CycleStarted(strategyID string) {
	for _, n := range m {
		n.CycleStarted(strategyID)
	}
}

func (m Multi) CycleComplete(ok, total int) {
	for _, n := range m {
		n.CycleComplete(ok, total)
	}
}

func (m Multi) RolloutStarted(rolloutID, abTestID string) {
	for _, n := range m {
		n.RolloutStarted(rolloutID, abTestID)
	}
}

func (m Multi) RolloutRamped(rolloutID string) {
	for _, n := range m {
		n.RolloutRamped(rolloutID)
	}
}

func (m Multi) RolloutPromoted(rolloutID string, metrics map[string]float64) {
	for _, n := range m {
		n.RolloutPromoted(rolloutID, metrics)
	}
}

func (m Multi) RolloutRolledBack(rolloutID, reason string) {
	for _, n := range m {
		n.RolloutRolledBack(rolloutID, reason)
	}
}

func (m Multi) SystemAlert(title, message string, severity Severity) {
	for _, n := range m {
		n.SystemAlert(title, message, severity)
	}
}
