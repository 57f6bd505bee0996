package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the engine and pipeline.
// One instance is created per process and shared by reference.
type Metrics struct {
	Registry *prometheus.Registry

	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TasksDisabled  prometheus.Counter
	TaskDuration   *prometheus.HistogramVec

	CyclesTotal   *prometheus.CounterVec
	RunningTasks  prometheus.Gauge
	RolloutsTotal *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_tasks_completed_total",
			Help: "Optimization tasks completed successfully",
		}, []string{"task_type"}),
		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_tasks_failed_total",
			Help: "Optimization task executions that failed",
		}, []string{"task_type"}),
		TasksDisabled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optimizer_tasks_disabled_total",
			Help: "Tasks auto-disabled after repeated failures",
		}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optimizer_task_duration_seconds",
			Help:    "Wall-clock duration of task executions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"task_type"}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_improvement_cycles_total",
			Help: "Improvement cycles by outcome",
		}, []string{"outcome"}),
		RunningTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optimizer_running_tasks",
			Help: "Tasks currently executing",
		}),
		RolloutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimizer_rollouts_total",
			Help: "Rollouts by final outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.TasksCompleted,
		m.TasksFailed,
		m.TasksDisabled,
		m.TaskDuration,
		m.CyclesTotal,
		m.RunningTasks,
		m.RolloutsTotal,
	)

	return m
}
