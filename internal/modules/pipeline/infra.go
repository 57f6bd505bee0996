package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Backtester validates a combined set of optimizations before deployment
type Backtester interface {
	Validate(ctx context.Context, optimizations map[string]interface{}) (map[string]float64, error)
}

// Deployer pushes configurations toward production and reports on them
type Deployer interface {
	DeployToStaging(ctx context.Context, optimizations map[string]interface{}) error
	RunSmokeTests(ctx context.Context) (bool, error)
	LiveMetrics(ctx context.Context) (map[string]float64, error)
}

// ABTester manages traffic-split experiments for staged rollouts
type ABTester interface {
	Start(ctx context.Context, optimizations map[string]interface{}, trafficPercent int) (string, error)
	Evaluate(ctx context.Context, testID string) (bool, error)
	UpdateTraffic(ctx context.Context, testID string, trafficPercent int) error
	Promote(ctx context.Context, testID string) error
	Rollback(ctx context.Context, testID string) error
}

// SimBacktester returns representative validation metrics
type SimBacktester struct{}

func (SimBacktester) Validate(ctx context.Context, optimizations map[string]interface{}) (map[string]float64, error) {
	return map[string]float64{
		"sharpe_ratio": 1.4,
		"win_rate":     0.58,
	}, nil
}

// SimDeployer simulates the deployment surface for local development
type SimDeployer struct{}

func (SimDeployer) DeployToStaging(ctx context.Context, optimizations map[string]interface{}) error {
	return nil
}

func (SimDeployer) RunSmokeTests(ctx context.Context) (bool, error) {
	return true, nil
}

func (SimDeployer) LiveMetrics(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{
		"win_rate":     0.57,
		"sharpe_ratio": 1.3,
	}, nil
}

// SimABTester tracks experiments in memory and always passes evaluation
type SimABTester struct {
	mu      sync.Mutex
	traffic map[string]int
}

// NewSimABTester creates an in-memory A/B tester
func NewSimABTester() *SimABTester {
	return &SimABTester{traffic: make(map[string]int)}
}

func (t *SimABTester) Start(ctx context.Context, optimizations map[string]interface{}, trafficPercent int) (string, error) {
	id := fmt.Sprintf("ab_%s", uuid.NewString()[:8])
	t.mu.Lock()
	t.traffic[id] = trafficPercent
	t.mu.Unlock()
	return id, nil
}

func (t *SimABTester) Evaluate(ctx context.Context, testID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.traffic[testID]; !ok {
		return false, fmt.Errorf("unknown ab test %s", testID)
	}
	return true, nil
}

func (t *SimABTester) UpdateTraffic(ctx context.Context, testID string, trafficPercent int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.traffic[testID]; !ok {
		return fmt.Errorf("unknown ab test %s", testID)
	}
	t.traffic[testID] = trafficPercent
	return nil
}

func (t *SimABTester) Promote(ctx context.Context, testID string) error {
	return t.UpdateTraffic(ctx, testID, 100)
}

func (t *SimABTester) Rollback(ctx context.Context, testID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.traffic, testID)
	return nil
}
