// Package metrics records per-stage duration histograms and decision-outcome
// counters for the verification pipeline, grounded on the teacher's
// collector shape (promauto-registered CounterVec/HistogramVec pairs).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector handles pipeline-stage metrics collection.
type Collector struct {
	stageDuration   *prometheus.HistogramVec
	stageOutcome    *prometheus.CounterVec
	decisionOutcome *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_verification_stage_duration_seconds",
				Help:    "Wall-clock duration of one pipeline stage.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		stageOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_verification_stage_outcomes_total",
				Help: "Count of pipeline stage outcomes by result.",
			},
			[]string{"stage", "result"},
		),
		decisionOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_verification_decisions_total",
				Help: "Count of terminal verification decisions.",
			},
			[]string{"status"},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_verification_transitions_total",
				Help: "Count of state machine transitions, legal and rejected.",
			},
			[]string{"transition", "legal"},
		),
	}
}

// RecordStageDuration records how long one named stage took.
func (c *Collector) RecordStageDuration(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStageOutcome records a stage's result classification (e.g. "ok",
// "transient", "hard_failure").
func (c *Collector) RecordStageOutcome(stage, result string) {
	c.stageOutcome.WithLabelValues(stage, result).Inc()
}

// RecordDecision records a terminal decision.
func (c *Collector) RecordDecision(status string) {
	c.decisionOutcome.WithLabelValues(status).Inc()
}

// RecordTransition records a transition attempt, legal or rejected.
func (c *Collector) RecordTransition(transition string, legal bool) {
	legalLabel := "true"
	if !legal {
		legalLabel = "false"
	}
	c.transitions.WithLabelValues(transition, legalLabel).Inc()
}

// NoopCollector is a Collector-shaped no-op used when metrics are disabled
// or in tests, so call sites never branch on configuration.
type NoopCollector struct{}

func (NoopCollector) RecordStageDuration(stage string, d time.Duration) {}
func (NoopCollector) RecordStageOutcome(stage, result string)           {}
func (NoopCollector) RecordDecision(status string)                      {}
func (NoopCollector) RecordTransition(transition string, legal bool)    {}

// Recorder is the metrics capability the Engine consumes, satisfied by both
// *Collector and NoopCollector.
type Recorder interface {
	RecordStageDuration(stage string, d time.Duration)
	RecordStageOutcome(stage, result string)
	RecordDecision(status string)
	RecordTransition(transition string, legal bool)
}
