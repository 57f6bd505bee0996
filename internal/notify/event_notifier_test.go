package notify

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/optimizer/internal/events"
)

func collectEvents(t *testing.T, emit func(n *EventNotifier), want int) []events.Event {
	t.Helper()

	em := events.NewManager(zerolog.Nop())
	ch, cancel := em.Subscribe()
	defer cancel()

	emit(NewEventNotifier(em))

	var got []events.Event
	for i := 0; i < want; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev)
		default:
			t.Fatalf("expected %d events, got %d", want, len(got))
		}
	}
	return got
}

func TestEventNotifierCycleStarted(t *testing.T) {
	got := collectEvents(t, func(n *EventNotifier) {
		n.CycleStarted("momentum_v2")
	}, 1)

	assert.Equal(t, events.CycleStarted, got[0].Type)
	assert.Equal(t, "pipeline", got[0].Module)
	assert.Equal(t, "momentum_v2", got[0].Data["strategy_id"])
}

func TestEventNotifierRolloutLifecycle(t *testing.T) {
	got := collectEvents(t, func(n *EventNotifier) {
		n.RolloutStarted("ro_1", "ab_9")
		n.RolloutRamped("ro_1")
		n.RolloutPromoted("ro_1", map[string]float64{"win_rate": 0.61})
		n.RolloutRolledBack("ro_2", "A/B test results did not meet success criteria")
	}, 4)

	require.Len(t, got, 4)
	assert.Equal(t, events.RolloutStarted, got[0].Type)
	assert.Equal(t, "ab_9", got[0].Data["ab_test_id"])
	assert.Equal(t, events.RolloutRamped, got[1].Type)
	assert.Equal(t, "ro_1", got[1].Data["rollout_id"])
	assert.Equal(t, events.RolloutPromoted, got[2].Type)
	assert.Equal(t, map[string]float64{"win_rate": 0.61}, got[2].Data["live_metrics"])
	assert.Equal(t, events.RolloutRolledBack, got[3].Type)
	assert.Equal(t, "A/B test results did not meet success criteria", got[3].Data["reason"])

	for _, ev := range got {
		assert.Equal(t, "pipeline", ev.Module)
	}
}
