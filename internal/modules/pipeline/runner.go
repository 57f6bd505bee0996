package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantflow/optimizer/internal/metrics"
	"github.com/quantflow/optimizer/internal/modules/analysis"
	"github.com/quantflow/optimizer/internal/notify"
)

// Identify stage thresholds
const (
	identWinRateCritical  = 0.45
	identWinRateWarning   = 0.50
	identDrawdownCritical = 0.15
	identDrawdownWarning  = 0.10
	identAccuracyCritical = 0.55
	identAccuracyWarning  = 0.60
	identSharpeCritical   = 0.5
	identSharpeWarning    = 1.0
	identRegimeWinRate    = 0.40
	identStaleModelDays   = 30
)

// Runner executes the 4-stage improvement cycle: Analyze, Identify,
// Optimize, Deploy. Stages run strictly in order; a failed stage or an
// empty recommendation list ends the cycle with the partial result list.
type Runner struct {
	source     PerformanceSource
	optimizers Optimizers
	backtester Backtester
	rollouts   *Controller
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time

	inFlight atomic.Bool

	mu      sync.Mutex
	history []Result
}

// RunnerConfig holds runner construction parameters
type RunnerConfig struct {
	Source     PerformanceSource
	Optimizers Optimizers
	Backtester Backtester
	Rollouts   *Controller
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
	Log        zerolog.Logger
}

// NewRunner creates a pipeline runner
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Optimizers == nil {
		cfg.Optimizers = DefaultOptimizers{}
	}
	if cfg.Backtester == nil {
		cfg.Backtester = SimBacktester{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Noop{}
	}
	return &Runner{
		source:     cfg.Source,
		optimizers: cfg.Optimizers,
		backtester: cfg.Backtester,
		rollouts:   cfg.Rollouts,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		log:        cfg.Log.With().Str("component", "pipeline_runner").Logger(),
		now:        time.Now,
	}
}

// TryRunFullCycle runs a cycle unless one is already in flight. The second
// return value reports whether this call actually ran.
func (r *Runner) TryRunFullCycle(ctx context.Context, strategyID string) ([]Result, bool) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Warn().Msg("Improvement cycle already in progress, skipping")
		return nil, false
	}
	defer r.inFlight.Store(false)
	return r.RunFullCycle(ctx, strategyID), true
}

// RunFullCycle executes the four stages in order and returns the results
// of the stages that ran. Stage failures are reported in the results, not
// returned as errors; an unexpected panic in the orchestration itself
// emits a system alert and propagates.
func (r *Runner) RunFullCycle(ctx context.Context, strategyID string) []Result {
	defer func() {
		if rec := recover(); rec != nil {
			r.notifier.SystemAlert("Optimization Cycle Failed",
				fmt.Sprintf("Full cycle failed with error: %v", rec),
				notify.SeverityError)
			panic(rec)
		}
	}()

	var results []Result

	r.log.Info().Str("strategy_id", strategyID).Msg("Starting improvement cycle")
	r.notifier.CycleStarted(strategyID)

	analyzeResult := r.stepAnalyze(ctx, strategyID)
	results = append(results, analyzeResult)
	if !analyzeResult.Success {
		r.log.Error().Str("error", analyzeResult.Error).Msg("Analysis step failed, stopping cycle")
		return r.finish(results, "failed")
	}

	identifyResult := r.stepIdentify(analyzeResult)
	results = append(results, identifyResult)
	if !identifyResult.Success {
		r.log.Error().Str("error", identifyResult.Error).Msg("Identification step failed, stopping cycle")
		return r.finish(results, "failed")
	}
	if len(identifyResult.Recommendations) == 0 {
		r.log.Info().Msg("No improvements needed at this time")
		return r.finish(results, "no_op")
	}

	optimizeResult := r.stepOptimize(ctx, identifyResult)
	results = append(results, optimizeResult)
	if !optimizeResult.Success {
		r.log.Error().Str("error", optimizeResult.Error).Msg("Optimization step failed, stopping cycle")
		return r.finish(results, "failed")
	}

	deployResult := r.stepDeploy(ctx, optimizeResult)
	results = append(results, deployResult)

	successful := 0
	for _, res := range results {
		if res.Success {
			successful++
		}
	}
	r.notifier.CycleComplete(successful, len(results))

	outcome := "completed"
	if !deployResult.Success {
		outcome = "failed"
	}
	return r.finish(results, outcome)
}

// History returns a copy of all stage results recorded so far
func (r *Runner) History() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Runner) finish(results []Result, outcome string) []Result {
	r.mu.Lock()
	r.history = append(r.history, results...)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	}
	r.log.Info().Str("outcome", outcome).Int("stages", len(results)).Msg("Improvement cycle finished")
	return results
}

// Stage 1: ANALYZE

func (r *Runner) stepAnalyze(ctx context.Context, strategyID string) Result {
	_ = strategyID // the default source aggregates across strategies

	metricsBefore := make(map[string]float64)
	findings := make(map[string]interface{})

	tradeStats, err := r.source.TradeStats(7)
	if err != nil {
		return r.stageFailure(StepAnalyze, nil, fmt.Errorf("failed to gather trade statistics: %w", err))
	}
	findings["trade_stats"] = tradeStats
	metricsBefore["win_rate_7d"] = tradeStats.WinRate
	metricsBefore["profit_factor_7d"] = tradeStats.ProfitFactor
	metricsBefore["total_trades_7d"] = float64(tradeStats.TotalTrades)
	metricsBefore["net_pnl_7d"] = tradeStats.NetPnL

	strategyPerf, err := r.source.StrategyPerformance(30)
	if err != nil {
		return r.stageFailure(StepAnalyze, nil, fmt.Errorf("failed to gather strategy performance: %w", err))
	}
	findings["strategy_performance"] = strategyPerf
	metricsBefore["sharpe_ratio"] = strategyPerf.SharpeRatio
	metricsBefore["max_drawdown"] = strategyPerf.MaxDrawdown
	metricsBefore["sortino_ratio"] = strategyPerf.SortinoRatio

	modelPerf, err := r.source.ModelPerformance()
	if err != nil {
		return r.stageFailure(StepAnalyze, nil, fmt.Errorf("failed to gather model performance: %w", err))
	}
	if modelPerf != nil {
		findings["model_performance"] = modelPerf
		metricsBefore["model_accuracy"] = modelPerf.Accuracy
	}

	regimePerf, err := r.source.RegimePerformance(30)
	if err != nil {
		return r.stageFailure(StepAnalyze, nil, fmt.Errorf("failed to gather regime performance: %w", err))
	}
	findings["regime_performance"] = regimePerf

	return Result{
		Step:     StepAnalyze,
		Success:  true,
		Findings: findings,
		ActionsTaken: []string{
			"Gathered trade statistics",
			"Analyzed strategy performance",
			"Evaluated model accuracy",
			"Checked regime performance",
		},
		MetricsBefore: metricsBefore,
		MetricsAfter:  map[string]float64{},
		Timestamp:     r.now(),
	}
}

// Stage 2: IDENTIFY

func (r *Runner) stepIdentify(analyzeResult Result) Result {
	metricsBefore := analyzeResult.MetricsBefore
	var recommendations []string

	winRate := metricOr(metricsBefore, "win_rate_7d", 0.5)
	if winRate < identWinRateCritical {
		recommendations = append(recommendations,
			fmt.Sprintf("CRITICAL: Win rate %.1f%% below threshold. Recommend hyperparameter optimization.", winRate*100))
	} else if winRate < identWinRateWarning {
		recommendations = append(recommendations,
			fmt.Sprintf("WARNING: Win rate %.1f%% suboptimal. Consider strategy weight adjustment.", winRate*100))
	}

	maxDD := metricOr(metricsBefore, "max_drawdown", 0)
	if maxDD > identDrawdownCritical {
		recommendations = append(recommendations,
			fmt.Sprintf("CRITICAL: Max drawdown %.1f%% exceeds limit. Recommend risk parameter optimization.", maxDD*100))
	} else if maxDD > identDrawdownWarning {
		recommendations = append(recommendations,
			fmt.Sprintf("WARNING: Max drawdown %.1f%% elevated. Review position sizing.", maxDD*100))
	}

	modelAcc := metricOr(metricsBefore, "model_accuracy", 0.6)
	if modelAcc < identAccuracyCritical {
		recommendations = append(recommendations,
			fmt.Sprintf("CRITICAL: Model accuracy %.1f%% too low. Recommend model retraining.", modelAcc*100))
	} else if modelAcc < identAccuracyWarning {
		recommendations = append(recommendations,
			fmt.Sprintf("WARNING: Model accuracy %.1f%% declining. Consider feature engineering.", modelAcc*100))
	}

	sharpe := metricOr(metricsBefore, "sharpe_ratio", 1.0)
	if sharpe < identSharpeCritical {
		recommendations = append(recommendations,
			fmt.Sprintf("CRITICAL: Sharpe ratio %.2f below acceptable. Full strategy review needed.", sharpe))
	} else if sharpe < identSharpeWarning {
		recommendations = append(recommendations,
			fmt.Sprintf("WARNING: Sharpe ratio %.2f suboptimal. Optimize strategy weights.", sharpe))
	}

	if regimePerf, ok := analyzeResult.Findings["regime_performance"].(map[string]analysis.RegimeStats); ok {
		regimes := make([]string, 0, len(regimePerf))
		for regime := range regimePerf {
			regimes = append(regimes, regime)
		}
		sort.Strings(regimes)
		for _, regime := range regimes {
			if regimePerf[regime].WinRate < identRegimeWinRate {
				recommendations = append(recommendations,
					fmt.Sprintf("Poor performance in %s regime. Consider regime-specific model.", regime))
			}
		}
	}

	if modelPerf, ok := analyzeResult.Findings["model_performance"].(*analysis.ModelPerformance); ok && modelPerf != nil {
		if modelPerf.LastTrainedAt != nil {
			daysSince := int(r.now().Sub(*modelPerf.LastTrainedAt).Hours() / 24)
			if daysSince > identStaleModelDays {
				recommendations = append(recommendations,
					fmt.Sprintf("Model hasn't been retrained in %d days. Schedule retraining.", daysSince))
			}
		}
	}

	r.log.Info().Int("count", len(recommendations)).Msg("Identified improvement opportunities")
	for _, rec := range recommendations {
		r.log.Info().Msg("  - " + rec)
	}

	return Result{
		Step:            StepIdentify,
		Success:         true,
		Findings:        map[string]interface{}{"opportunities_count": len(recommendations)},
		Recommendations: recommendations,
		ActionsTaken: []string{
			"Evaluated win rate trends",
			"Checked drawdown limits",
			"Analyzed model performance",
			"Reviewed regime performance",
		},
		MetricsBefore: metricsBefore,
		MetricsAfter:  map[string]float64{},
		Timestamp:     r.now(),
	}
}

// Stage 3: OPTIMIZE

func (r *Runner) stepOptimize(ctx context.Context, identifyResult Result) Result {
	var actions []string
	optimizations := make(map[string]interface{})

	// Keyword dispatch: a recommendation can only trigger one routine, and
	// repeat triggers overwrite the category entry.
	for _, rec := range identifyResult.Recommendations {
		lower := strings.ToLower(rec)
		r.log.Info().Str("recommendation", rec).Msg("Processing recommendation")

		var (
			category string
			result   map[string]interface{}
			err      error
		)
		switch {
		case strings.Contains(lower, "hyperparameter"):
			category = "hyperparameters"
			result, err = r.optimizers.Hyperparameters(ctx)
			actions = append(actions, fmt.Sprintf("Optimized hyperparameters: %v", result))
		case strings.Contains(lower, "model retraining"):
			category = "model"
			result, err = r.optimizers.RetrainModel(ctx)
			actions = append(actions, fmt.Sprintf("Retrained model: %v", result))
		case strings.Contains(lower, "feature"):
			category = "features"
			result, err = r.optimizers.Features(ctx)
			actions = append(actions, fmt.Sprintf("Optimized features: %v", result))
		case strings.Contains(lower, "risk"), strings.Contains(lower, "drawdown"):
			category = "risk_params"
			result, err = r.optimizers.RiskParams(ctx)
			actions = append(actions, fmt.Sprintf("Optimized risk params: %v", result))
		case strings.Contains(lower, "strategy weight"):
			category = "strategy_weights"
			result, err = r.optimizers.StrategyWeights(ctx)
			actions = append(actions, fmt.Sprintf("Optimized strategy weights: %v", result))
		default:
			continue
		}
		if err != nil {
			return r.stageFailure(StepOptimize, identifyResult.MetricsBefore,
				fmt.Errorf("%s optimization failed: %w", category, err))
		}
		optimizations[category] = result
	}

	r.log.Info().Msg("Running validation backtest")
	backtest, err := r.backtester.Validate(ctx, optimizations)
	if err != nil {
		return r.stageFailure(StepOptimize, identifyResult.MetricsBefore,
			fmt.Errorf("validation backtest failed: %w", err))
	}
	optimizations["backtest_results"] = backtest

	return Result{
		Step:          StepOptimize,
		Success:       true,
		Findings:      map[string]interface{}{"optimizations": optimizations},
		ActionsTaken:  actions,
		MetricsBefore: identifyResult.MetricsBefore,
		MetricsAfter:  map[string]float64{"backtest_sharpe": backtest["sharpe_ratio"]},
		Timestamp:     r.now(),
	}
}

// Stage 4: DEPLOY

func (r *Runner) stepDeploy(ctx context.Context, optimizeResult Result) Result {
	optimizations, _ := optimizeResult.Findings["optimizations"].(map[string]interface{})

	rollout, actions, err := r.rollouts.Begin(ctx, optimizations)
	if err != nil {
		return Result{
			Step:          StepDeploy,
			Success:       false,
			Findings:      map[string]interface{}{},
			ActionsTaken:  actions,
			MetricsBefore: optimizeResult.MetricsBefore,
			MetricsAfter:  map[string]float64{},
			Timestamp:     r.now(),
			Error:         err.Error(),
		}
	}

	return Result{
		Step:    StepDeploy,
		Success: true,
		Findings: map[string]interface{}{
			"rollout_id": rollout.ID,
			"ab_test_id": rollout.ABTestID,
			"rollout":    string(rollout.Status),
		},
		ActionsTaken:  actions,
		MetricsBefore: optimizeResult.MetricsBefore,
		MetricsAfter:  map[string]float64{},
		Timestamp:     r.now(),
	}
}

func (r *Runner) stageFailure(step Step, metricsBefore map[string]float64, err error) Result {
	r.log.Error().Err(err).Str("step", string(step)).Msg("Stage failed")
	if metricsBefore == nil {
		metricsBefore = map[string]float64{}
	}
	return Result{
		Step:          step,
		Success:       false,
		Findings:      map[string]interface{}{},
		MetricsBefore: metricsBefore,
		MetricsAfter:  map[string]float64{},
		Timestamp:     r.now(),
		Error:         err.Error(),
	}
}

func metricOr(m map[string]float64, key string, fallback float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}
