package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookNotifier posts notifications as JSON to a configured webhook URL.
// Delivery happens on a separate goroutine with a short timeout; failures
// are logged and dropped.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
		log:    log.With().Str("component", "webhook_notifier").Logger(),
	}
}

func (n *WebhookNotifier) post(event string, payload map[string]interface{}) {
	body := map[string]interface{}{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"payload":   payload,
	}

	go func() {
		data, err := json.Marshal(body)
		if err != nil {
			n.log.Error().Err(err).Str("event", event).Msg("Failed to encode webhook payload")
			return
		}

		resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(data))
		if err != nil {
			n.log.Warn().Err(err).Str("event", event).Msg("Webhook delivery failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			n.log.Warn().
				Int("status", resp.StatusCode).
				Str("event", event).
				Msg("Webhook returned non-success status")
		}
	}()
}

func webhookTask(t TaskInfo) map[string]interface{} {
	return map[string]interface{}{
		"task_id":      t.ID,
		"task_type":    t.Type,
		"component_id": t.ComponentID,
		"frequency":    t.Frequency,
	}
}

func (n *WebhookNotifier) EngineStarted() { n.post("engine_started", nil) }
func (n *WebhookNotifier) EngineStopped() { n.post("engine_stopped", nil) }

func (n *WebhookNotifier) TaskAdded(t TaskInfo)   { n.post("task_added", webhookTask(t)) }
func (n *WebhookNotifier) TaskRemoved(t TaskInfo) { n.post("task_removed", webhookTask(t)) }
func (n *WebhookNotifier) TaskStarted(t TaskInfo) { n.post("task_started", webhookTask(t)) }

func (n *WebhookNotifier) TaskCompleted(t TaskInfo, result map[string]interface{}) {
	payload := webhookTask(t)
	payload["result"] = result
	n.post("task_completed", payload)
}

func (n *WebhookNotifier) TaskFailed(t TaskInfo, err error) {
	payload := webhookTask(t)
	payload["error"] = err.Error()
	n.post("task_failed", payload)
}

func (n *WebhookNotifier) TaskDisabled(t TaskInfo) { n.post("task_disabled", webhookTask(t)) }

func (n *WebhookNotifier) CycleStarted(strategyID string) {
	n.post("cycle_started", map[string]interface{}{"strategy_id": strategyID})
}

func (n *WebhookNotifier) CycleComplete(ok, total int) {
	n.post("cycle_complete", map[string]interface{}{
		"successful_steps": ok,
		"total_steps":      total,
		"summary":          fmt.Sprintf("%d/%d steps successful", ok, total),
	})
}

func (n *WebhookNotifier) RolloutStarted(rolloutID, abTestID string) {
	n.post("rollout_started", map[string]interface{}{
		"rollout_id": rolloutID,
		"ab_test_id": abTestID,
	})
}

func (n *WebhookNotifier) RolloutRamped(rolloutID string) {
	n.post("rollout_ramped", map[string]interface{}{"rollout_id": rolloutID})
}

func (n *WebhookNotifier) RolloutPromoted(rolloutID string, metrics map[string]float64) {
	n.post("rollout_promoted", map[string]interface{}{
		"rollout_id":   rolloutID,
		"live_metrics": metrics,
	})
}

func (n *WebhookNotifier) RolloutRolledBack(rolloutID, reason string) {
	n.post("rollout_rolled_back", map[string]interface{}{
		"rollout_id": rolloutID,
		"reason":     reason,
	})
}

func (n *WebhookNotifier) SystemAlert(title, message string, severity Severity) {
	n.post("system_alert", map[string]interface{}{
		"title":    title,
		"message":  message,
		"severity": string(severity),
	})
}
