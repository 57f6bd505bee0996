package pipeline

import "context"

// Optimizers groups the tuning routines the Optimize stage can invoke.
// Each returns an opaque parameter set describing what changed.
type Optimizers interface {
	Hyperparameters(ctx context.Context) (map[string]interface{}, error)
	RetrainModel(ctx context.Context) (map[string]interface{}, error)
	Features(ctx context.Context) (map[string]interface{}, error)
	RiskParams(ctx context.Context) (map[string]interface{}, error)
	StrategyWeights(ctx context.Context) (map[string]interface{}, error)
}

// DefaultOptimizers returns representative parameter sets. Real tuning
// backends implement the same interface and replace this at wiring time.
type DefaultOptimizers struct{}

func (DefaultOptimizers) Hyperparameters(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"best_params": map[string]interface{}{
			"stop_loss":   0.02,
			"take_profit": 0.04,
		},
	}, nil
}

func (DefaultOptimizers) RetrainModel(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"new_version": "v2.1",
		"accuracy":    0.65,
	}, nil
}

func (DefaultOptimizers) Features(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"selected_features": []string{"rsi", "ema", "volume"},
	}, nil
}

func (DefaultOptimizers) RiskParams(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"max_position_size": 0.15,
		"daily_loss_limit":  0.05,
	}, nil
}

func (DefaultOptimizers) StrategyWeights(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"weights": map[string]interface{}{
			"strategy_a": 0.5,
			"strategy_b": 0.3,
			"strategy_c": 0.2,
		},
	}, nil
}
