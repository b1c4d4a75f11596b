package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	foldsTotal    *prometheus.CounterVec
	gateDecisions *prometheus.CounterVec
	foldDuration  prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantgate_experiment_runs_total",
				Help: "Total experiment runs by terminal status",
			},
			[]string{"status"},
		),
		foldsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantgate_folds_evaluated_total",
				Help: "Total folds evaluated by status",
			},
			[]string{"status"},
		),
		gateDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantgate_gate_decisions_total",
				Help: "Total promotion gate decisions by stage and verdict",
			},
			[]string{"stage", "verdict"},
		),
		foldDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quantgate_fold_evaluation_seconds",
				Help:    "Duration of single fold evaluations",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordRun records a finished experiment run.
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordFold records one evaluated fold.
func (r *Recorder) RecordFold(status string) {
	r.foldsTotal.WithLabelValues(status).Inc()
}

// RecordGateDecision records a gate verdict.
func (r *Recorder) RecordGateDecision(stage, verdict string) {
	r.gateDecisions.WithLabelValues(stage, verdict).Inc()
}

// RecordFoldDuration records fold evaluation latency in seconds.
func (r *Recorder) RecordFoldDuration(seconds float64) {
	r.foldDuration.Observe(seconds)
}
