package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions       *prometheus.CounterVec
	decisionLatency *prometheus.HistogramVec
	rounds          *prometheus.CounterVec
	seriesValue     *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentomics_decisions_total",
				Help: "Decision attempts by role and result",
			},
			[]string{"role", "result"},
		),
		decisionLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentomics_decision_duration_seconds",
				Help:    "Duration of a single decision call",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"role"},
		),
		rounds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentomics_rounds_committed_total",
				Help: "Committed simulation rounds",
			},
			[]string{"mode"},
		),
		seriesValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentomics_series_value",
				Help: "Last committed value of a state series",
			},
			[]string{"series"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentomics_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentomics_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordDecision(role, result string) {
	r.decisions.WithLabelValues(role, result).Inc()
}

func (r *Recorder) RecordDecisionLatency(role string, seconds float64) {
	r.decisionLatency.WithLabelValues(role).Observe(seconds)
}

func (r *Recorder) RecordRoundCommitted(mode string) {
	r.rounds.WithLabelValues(mode).Inc()
}

func (r *Recorder) RecordSeriesValue(series string, value float64) {
	r.seriesValue.WithLabelValues(series).Set(value)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
