package improvement

import (
	"sync"

	"github.com/quantflow/optimizer/internal/notify"
)

// recordingNotifier counts lifecycle notifications for assertions
type recordingNotifier struct {
	mu        sync.Mutex
	started   int
	stopped   int
	added     int
	removed   int
	taskStart int
	completed int
	failed    int
	disabled  int
	alerts    []string
}

func (n *recordingNotifier) EngineStarted() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
}

func (n *recordingNotifier) EngineStopped() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped++
}

func (n *recordingNotifier) TaskAdded(notify.TaskInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added++
}

func (n *recordingNotifier) TaskRemoved(notify.TaskInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed++
}

func (n *recordingNotifier) TaskStarted(notify.TaskInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.taskStart++
}

func (n *recordingNotifier) TaskCompleted(notify.TaskInfo, map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
}

func (n *recordingNotifier) TaskFailed(notify.TaskInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
}

func (n *recordingNotifier) TaskDisabled(notify.TaskInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disabled++
}

func (n *recordingNotifier) CycleStarted(string)                        {}
func (n *recordingNotifier) CycleComplete(int, int)                     {}
func (n *recordingNotifier) RolloutStarted(string, string)              {}
func (n *recordingNotifier) RolloutRamped(string)                       {}
func (n *recordingNotifier) RolloutPromoted(string, map[string]float64) {}
func (n *recordingNotifier) RolloutRolledBack(string, string)           {}

func (n *recordingNotifier) SystemAlert(title, _ string, _ notify.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, title)
}

func (n *recordingNotifier) counts() (failed, disabled, completed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed, n.disabled, n.completed
}
