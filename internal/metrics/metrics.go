// Package metrics exposes Prometheus instruments for pipeline runs. Each App
// owns its own registry so tests and embedded runners never collide on the
// global default registerer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics groups the instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec
	Tasks        *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	FanOutItems  *prometheus.CounterVec
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegrid_runs_total",
				Help: "Pipeline runs by outcome.",
			},
			[]string{"outcome"},
		),
		Tasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegrid_tasks_total",
				Help: "Task executions by task type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipegrid_task_duration_seconds",
				Help:    "Task execution time by task type.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"type"},
		),
		FanOutItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegrid_fanout_items_total",
				Help: "Fan-out items processed by task type and outcome.",
			},
			[]string{"type", "outcome"},
		),
	}
}

// Registry returns the registry the instruments are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

// ObserveTask counts a task execution and, unless skipped, its duration.
func (m *Metrics) ObserveTask(taskType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(taskType, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.TaskDuration.WithLabelValues(taskType).Observe(d.Seconds())
	}
}

// ObserveItem counts one fan-out item.
func (m *Metrics) ObserveItem(taskType, outcome string) {
	if m == nil {
		return
	}
	m.FanOutItems.WithLabelValues(taskType, outcome).Inc()
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
