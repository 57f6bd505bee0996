package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	EngineStarted EventType = "ENGINE_STARTED"
	EngineStopped EventType = "ENGINE_STOPPED"

	TaskAdded     EventType = "TASK_ADDED"
	TaskRemoved   EventType = "TASK_REMOVED"
	TaskStarted   EventType = "TASK_STARTED"
	TaskCompleted EventType = "TASK_COMPLETED"
	TaskFailed    EventType = "TASK_FAILED"
	TaskDisabled  EventType = "TASK_DISABLED"

	CycleStarted  EventType = "CYCLE_STARTED"
	CycleComplete EventType = "CYCLE_COMPLETE"
	StageComplete EventType = "STAGE_COMPLETE"

	RolloutStarted    EventType = "ROLLOUT_STARTED"
	RolloutRamped     EventType = "ROLLOUT_RAMPED"
	RolloutPromoted   EventType = "ROLLOUT_PROMOTED"
	RolloutRolledBack EventType = "ROLLOUT_ROLLED_BACK"

	SystemAlert   EventType = "SYSTEM_ALERT"
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission, logging and subscriber fan-out
type Manager struct {
	log    zerolog.Logger
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:  log.With().Str("service", "events").Logger(),
		subs: make(map[int]chan Event),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		// Slow subscribers drop events rather than block emitters
		select {
		case ch <- event:
		default:
		}
	}
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function that must be called when the subscriber goes away.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, 64)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
