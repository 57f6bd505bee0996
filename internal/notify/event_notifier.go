package notify

import (
	"github.com/quantflow/optimizer/internal/events"
)

// EventNotifier bridges notifications onto the event manager, so every
// lifecycle notification is also logged and streamed to websocket
// subscribers.
type EventNotifier struct {
	events *events.Manager
}

// NewEventNotifier creates a notifier backed by the event manager
func NewEventNotifier(em *events.Manager) *EventNotifier {
	return &EventNotifier{events: em}
}

func taskData(t TaskInfo) map[string]interface{} {
	return map[string]interface{}{
		"task_id":      t.ID,
		"task_type":    t.Type,
		"component_id": t.ComponentID,
		"frequency":    t.Frequency,
		"priority":     t.Priority,
	}
}

func (n *EventNotifier) EngineStarted() {
	n.events.Emit(events.EngineStarted, "improvement", nil)
}

func (n *EventNotifier) EngineStopped() {
	n.events.Emit(events.EngineStopped, "improvement", nil)
}

func (n *EventNotifier) TaskAdded(t TaskInfo) {
	n.events.Emit(events.TaskAdded, "improvement", taskData(t))
}

func (n *EventNotifier) TaskRemoved(t TaskInfo) {
	n.events.Emit(events.TaskRemoved, "improvement", taskData(t))
}

func (n *EventNotifier) TaskStarted(t TaskInfo) {
	n.events.Emit(events.TaskStarted, "improvement", taskData(t))
}

func (n *EventNotifier) TaskCompleted(t TaskInfo, result map[string]interface{}) {
	data := taskData(t)
	data["result"] = result
	n.events.Emit(events.TaskCompleted, "improvement", data)
}

func (n *EventNotifier) TaskFailed(t TaskInfo, err error) {
	data := taskData(t)
	data["error"] = err.Error()
	n.events.Emit(events.TaskFailed, "improvement", data)
}

func (n *EventNotifier) TaskDisabled(t TaskInfo) {
	n.events.Emit(events.TaskDisabled, "improvement", taskData(t))
}

func (n *EventNotifier) CycleStarted(strategyID string) {
	n.events.Emit(events.CycleStarted, "pipeline", map[string]interface{}{
		"strategy_id": strategyID,
	})
}

func (n *EventNotifier) CycleComplete(ok, total int) {
	n.events.Emit(events.CycleComplete, "pipeline", map[string]interface{}{
		"successful_steps": ok,
		"total_steps":      total,
	})
}

func (n *EventNotifier) RolloutStarted(rolloutID, abTestID string) {
	n.events.Emit(events.RolloutStarted, "pipeline", map[string]interface{}{
		"rollout_id": rolloutID,
		"ab_test_id": abTestID,
	})
}

func (n *EventNotifier) RolloutRamped(rolloutID string) {
	n.events.Emit(events.RolloutRamped, "pipeline", map[string]interface{}{
		"rollout_id": rolloutID,
	})
}

func (n *EventNotifier) RolloutPromoted(rolloutID string, metrics map[string]float64) {
	n.events.Emit(events.RolloutPromoted, "pipeline", map[string]interface{}{
		"rollout_id":   rolloutID,
		"live_metrics": metrics,
	})
}

func (n *EventNotifier) RolloutRolledBack(rolloutID, reason string) {
	n.events.Emit(events.RolloutRolledBack, "pipeline", map[string]interface{}{
		"rollout_id": rolloutID,
		"reason":     reason,
	})
}

func (n *EventNotifier) SystemAlert(title, message string, severity Severity) {
	n.events.Emit(events.SystemAlert, "system", map[string]interface{}{
		"title":    title,
		"message":  message,
		"severity": string(severity),
	})
}
