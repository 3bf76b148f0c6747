package experiments

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts background job outcomes.
type Metrics struct {
	ExperimentsCompleted prometheus.Counter
	ExperimentsFailed    prometheus.Counter
	ReportsCompleted     prometheus.Counter
	ReportsFailed        prometheus.Counter
	RunSeconds           prometheus.Histogram
}

// NewMetrics builds and registers the job metrics. A nil registerer skips
// registration, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExperimentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biograph_experiments_completed_total",
			Help: "Experiments that finished with a stored result.",
		}),
		ExperimentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biograph_experiments_failed_total",
			Help: "Experiments that ended in a failure state.",
		}),
		ReportsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biograph_reports_completed_total",
			Help: "Report ingestions that produced a network.",
		}),
		ReportsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biograph_reports_failed_total",
			Help: "Report ingestions that failed.",
		}),
		RunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "biograph_job_run_seconds",
			Help:    "Wall-clock duration of background jobs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ExperimentsCompleted,
			m.ExperimentsFailed,
			m.ReportsCompleted,
			m.ReportsFailed,
			m.RunSeconds,
		)
	}
	return m
}
