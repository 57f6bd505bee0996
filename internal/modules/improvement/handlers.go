package improvement

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Handler executes one optimization task and returns an opaque result
// payload. A handler failure is recorded on the task, never propagated.
type Handler interface {
	Run(ctx context.Context, task *Task) (map[string]interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, task *Task) (map[string]interface{}, error)

// Run implements Handler
func (f HandlerFunc) Run(ctx context.Context, task *Task) (map[string]interface{}, error) {
	return f(ctx, task)
}

// HandlerRegistry maps task types to handlers. Registration normally
// happens before the engine starts, but handlers are swappable at runtime.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[OptimizationType]Handler
	log      zerolog.Logger
}

// NewHandlerRegistry creates a registry pre-populated with the default
// handlers for the five built-in optimization types.
func NewHandlerRegistry(log zerolog.Logger) *HandlerRegistry {
	r := &HandlerRegistry{
		handlers: make(map[OptimizationType]Handler),
		log:      log.With().Str("component", "handler_registry").Logger(),
	}
	r.registerDefaults()
	return r
}

// Register sets the handler for a task type, replacing any existing one
func (r *HandlerRegistry) Register(taskType OptimizationType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = handler
	r.log.Info().Str("task_type", string(taskType)).Msg("Handler registered")
}

// Get returns the handler for a task type
func (r *HandlerRegistry) Get(taskType OptimizationType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Default handlers. The real optimization algorithms live behind external
// services; these defaults return representative parameter sets so the
// scheduling and audit paths are exercised end to end.

func (r *HandlerRegistry) registerDefaults() {
	r.handlers[TypeHyperparameter] = HandlerFunc(r.optimizeHyperparameters)
	r.handlers[TypeFeatureSelection] = HandlerFunc(r.optimizeFeatures)
	r.handlers[TypeStrategyWeights] = HandlerFunc(r.optimizeStrategyWeights)
	r.handlers[TypeModelRetrain] = HandlerFunc(r.retrainModel)
	r.handlers[TypeRiskParams] = HandlerFunc(r.optimizeRiskParams)
}

func (r *HandlerRegistry) optimizeHyperparameters(ctx context.Context, task *Task) (map[string]interface{}, error) {
	r.log.Info().Str("component_id", task.ComponentID).Msg("Optimizing hyperparameters")

	return map[string]interface{}{
		"optimized_params":   map[string]interface{}{"stop_loss": 0.02, "take_profit": 0.04},
		"improvement_metric": "sharpe_ratio",
		"improvement_value":  0.15,
		"backtest_results":   map[string]interface{}{"win_rate": 0.62, "profit_factor": 1.8},
	}, nil
}

func (r *HandlerRegistry) optimizeFeatures(ctx context.Context, task *Task) (map[string]interface{}, error) {
	r.log.Info().Str("component_id", task.ComponentID).Msg("Optimizing feature selection")

	return map[string]interface{}{
		"selected_features":  []string{"rsi", "ema", "volume"},
		"removed_features":   []string{"low_importance_feature"},
		"feature_importance": map[string]interface{}{"rsi": 0.35, "ema": 0.28},
	}, nil
}

func (r *HandlerRegistry) optimizeStrategyWeights(ctx context.Context, task *Task) (map[string]interface{}, error) {
	r.log.Info().Str("component_id", task.ComponentID).Msg("Optimizing strategy weights")

	return map[string]interface{}{
		"new_weights":          map[string]interface{}{"strategy_a": 0.4, "strategy_b": 0.35, "strategy_c": 0.25},
		"expected_improvement": 0.08,
	}, nil
}

func (r *HandlerRegistry) retrainModel(ctx context.Context, task *Task) (map[string]interface{}, error) {
	r.log.Info().Str("component_id", task.ComponentID).Msg("Retraining model")

	return map[string]interface{}{
		"new_model_version":   "v2.1.0",
		"training_samples":    50000,
		"validation_accuracy": 0.68,
		"deployment_status":   "staging",
	}, nil
}

func (r *HandlerRegistry) optimizeRiskParams(ctx context.Context, task *Task) (map[string]interface{}, error) {
	r.log.Info().Str("component_id", task.ComponentID).Msg("Optimizing risk parameters")

	return map[string]interface{}{
		"new_risk_params": map[string]interface{}{
			"max_position_size": 0.15,
			"stop_loss_pct":     0.02,
			"take_profit_pct":   0.04,
		},
		"max_drawdown_improvement": 0.05,
	}, nil
}
