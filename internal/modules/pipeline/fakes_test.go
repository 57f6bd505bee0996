package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/quantflow/optimizer/internal/modules/analysis"
	"github.com/quantflow/optimizer/internal/notify"
)

// fakeSource returns canned performance data
type fakeSource struct {
	trades   analysis.TradeStats
	strategy analysis.StrategyPerformance
	model    *analysis.ModelPerformance
	regimes  map[string]analysis.RegimeStats
	err      error
}

func (f *fakeSource) TradeStats(days int) (*analysis.TradeStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	stats := f.trades
	return &stats, nil
}

func (f *fakeSource) StrategyPerformance(days int) (*analysis.StrategyPerformance, error) {
	if f.err != nil {
		return nil, f.err
	}
	perf := f.strategy
	return &perf, nil
}

func (f *fakeSource) ModelPerformance() (*analysis.ModelPerformance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

func (f *fakeSource) RegimePerformance(days int) (map[string]analysis.RegimeStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.regimes, nil
}

// healthySource reports performance that needs no improvements
func healthySource() *fakeSource {
	return &fakeSource{
		trades:   analysis.TradeStats{WinRate: 0.58, ProfitFactor: 1.7, TotalTrades: 120, NetPnL: 5000},
		strategy: analysis.StrategyPerformance{SharpeRatio: 1.4, SortinoRatio: 1.9, MaxDrawdown: 0.06},
		model:    &analysis.ModelPerformance{ModelID: "m1", Version: "v3", Accuracy: 0.66},
		regimes: map[string]analysis.RegimeStats{
			"trending_up": {WinRate: 0.62, Trades: 40},
			"ranging":     {WinRate: 0.51, Trades: 30},
		},
	}
}

// countingOptimizers records which routines ran and how often
type countingOptimizers struct {
	mu    sync.Mutex
	calls map[string]int
	fail  string // routine name that should error
}

func newCountingOptimizers() *countingOptimizers {
	return &countingOptimizers{calls: make(map[string]int)}
}

func (o *countingOptimizers) run(name string) (map[string]interface{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[name]++
	if o.fail == name {
		return nil, errors.New(name + " blew up")
	}
	return map[string]interface{}{"routine": name, "invocation": o.calls[name]}, nil
}

func (o *countingOptimizers) Hyperparameters(ctx context.Context) (map[string]interface{}, error) {
	return o.run("hyperparameters")
}

func (o *countingOptimizers) RetrainModel(ctx context.Context) (map[string]interface{}, error) {
	return o.run("model")
}

func (o *countingOptimizers) Features(ctx context.Context) (map[string]interface{}, error) {
	return o.run("features")
}

func (o *countingOptimizers) RiskParams(ctx context.Context) (map[string]interface{}, error) {
	return o.run("risk_params")
}

func (o *countingOptimizers) StrategyWeights(ctx context.Context) (map[string]interface{}, error) {
	return o.run("strategy_weights")
}

// fakeDeployer controls smoke-test outcomes
type fakeDeployer struct {
	smokePass   bool
	stagingErr  error
	liveMetrics map[string]float64
	deploys     int
}

func (d *fakeDeployer) DeployToStaging(ctx context.Context, optimizations map[string]interface{}) error {
	d.deploys++
	return d.stagingErr
}

func (d *fakeDeployer) RunSmokeTests(ctx context.Context) (bool, error) {
	return d.smokePass, nil
}

func (d *fakeDeployer) LiveMetrics(ctx context.Context) (map[string]float64, error) {
	if d.liveMetrics == nil {
		return map[string]float64{"win_rate": 0.57}, nil
	}
	return d.liveMetrics, nil
}

// scriptedABTester returns evaluation verdicts in order
type scriptedABTester struct {
	verdicts  []bool
	evalCalls int
	traffic   map[string]int
	rollbacks int
	promotes  int
}

func newScriptedABTester(verdicts ...bool) *scriptedABTester {
	return &scriptedABTester{verdicts: verdicts, traffic: make(map[string]int)}
}

func (t *scriptedABTester) Start(ctx context.Context, optimizations map[string]interface{}, trafficPercent int) (string, error) {
	id := "ab_test_123"
	t.traffic[id] = trafficPercent
	return id, nil
}

func (t *scriptedABTester) Evaluate(ctx context.Context, testID string) (bool, error) {
	if t.evalCalls >= len(t.verdicts) {
		return false, errors.New("no scripted verdict left")
	}
	v := t.verdicts[t.evalCalls]
	t.evalCalls++
	return v, nil
}

func (t *scriptedABTester) UpdateTraffic(ctx context.Context, testID string, trafficPercent int) error {
	t.traffic[testID] = trafficPercent
	return nil
}

func (t *scriptedABTester) Promote(ctx context.Context, testID string) error {
	t.promotes++
	t.traffic[testID] = 100
	return nil
}

func (t *scriptedABTester) Rollback(ctx context.Context, testID string) error {
	t.rollbacks++
	delete(t.traffic, testID)
	return nil
}

// memoryRolloutStore keeps rollouts in a map for controller tests
type memoryRolloutStore struct {
	mu       sync.Mutex
	rollouts map[string]*Rollout
}

func newMemoryRolloutStore() *memoryRolloutStore {
	return &memoryRolloutStore{rollouts: make(map[string]*Rollout)}
}

func (s *memoryRolloutStore) Save(r *Rollout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.rollouts[r.ID] = &clone
	return nil
}

func (s *memoryRolloutStore) Get(id string) (*Rollout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rollouts[id]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

func (s *memoryRolloutStore) Due(now time.Time) ([]*Rollout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*Rollout
	for _, r := range s.rollouts {
		if r.Terminal() || r.NextCheckAt == nil || r.NextCheckAt.After(now) {
			continue
		}
		clone := *r
		due = append(due, &clone)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextCheckAt.Before(*due[j].NextCheckAt) })
	return due, nil
}

func (s *memoryRolloutStore) List(limit int) ([]*Rollout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Rollout
	for _, r := range s.rollouts {
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// alertRecorder captures system alerts and rollout lifecycle notifications
type alertRecorder struct {
	notify.Noop
	mu            sync.Mutex
	alerts        []string
	alertMessages []string
	cycleStarts   int
	cycles        []int
	rolloutEvents []string
}

func (a *alertRecorder) CycleStarted(strategyID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cycleStarts++
}

func (a *alertRecorder) SystemAlert(title, message string, _ notify.Severity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, title)
	a.alertMessages = append(a.alertMessages, message)
}

func (a *alertRecorder) CycleComplete(ok, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cycles = append(a.cycles, total)
}

func (a *alertRecorder) RolloutStarted(rolloutID, abTestID string) {
	a.recordRolloutEvent("started")
}

func (a *alertRecorder) RolloutRamped(rolloutID string) {
	a.recordRolloutEvent("ramped")
}

func (a *alertRecorder) RolloutPromoted(rolloutID string, metrics map[string]float64) {
	a.recordRolloutEvent("promoted")
}

func (a *alertRecorder) RolloutRolledBack(rolloutID, reason string) {
	a.recordRolloutEvent("rolled_back:" + reason)
}

func (a *alertRecorder) recordRolloutEvent(event string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rolloutEvents = append(a.rolloutEvents, event)
}
