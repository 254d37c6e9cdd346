package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the process-wide Prometheus instruments. All metrics share
// the agentguard namespace.
type Metrics struct {
	InterceptDuration  *prometheus.HistogramVec
	Decisions          *prometheus.CounterVec
	AnalyzerFallbacks  prometheus.Counter
	EnrichmentDropped  prometheus.Counter
	LedgerAppendErrors prometheus.Counter
}

// NewMetrics registers the instruments on reg and returns them. Passing a
// fresh registry keeps tests isolated from the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InterceptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentguard",
			Name:      "intercept_duration_seconds",
			Help:      "End-to-end latency of one interception, by decision.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"decision"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentguard",
			Name:      "decisions_total",
			Help:      "Interception outcomes, by decision and action type.",
		}, []string{"decision", "action_type"}),
		AnalyzerFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentguard",
			Name:      "analyzer_fallbacks_total",
			Help:      "Assessments that fell back because the classifier was unavailable.",
		}),
		EnrichmentDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentguard",
			Name:      "enrichment_dropped_total",
			Help:      "Flagged events dropped because the enrichment queue was full.",
		}),
		LedgerAppendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentguard",
			Name:      "ledger_append_errors_total",
			Help:      "Failed forensic ledger appends.",
		}),
	}
}
