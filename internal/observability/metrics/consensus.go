package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsensusMetrics contains Prometheus metrics for report aggregation.
type ConsensusMetrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	rowsEmittedTotal prometheus.Counter
	unanimousTotal   prometheus.Counter
	majorityTotal    prometheus.Counter
	noConsensusTotal prometheus.Counter

	collectors []prometheus.Collector
}

// NewConsensusMetrics creates and registers new consensus metrics.
func NewConsensusMetrics(registry *prometheus.Registry) (*ConsensusMetrics, error) {
	m := &ConsensusMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ConsensusMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consensus_runs_total",
			Help: "Total number of aggregation runs",
		},
		[]string{"status"}, // status: success, error
	)

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "consensus_run_duration_seconds",
		Help:    "Time taken for an aggregation run",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.rowsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_rows_emitted_total",
		Help: "Total number of consensus report rows emitted",
	})

	m.unanimousTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_fields_unanimous_total",
		Help: "Aggregated fields where all raters agreed",
	})

	m.majorityTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_fields_majority_total",
		Help: "Aggregated fields decided by a strict majority",
	})

	m.noConsensusTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consensus_fields_no_consensus_total",
		Help: "Aggregated fields where no majority existed",
	})

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.rowsEmittedTotal,
		m.unanimousTotal,
		m.majorityTotal,
		m.noConsensusTotal,
	}
}

// Describe implements the Collector interface
func (m *ConsensusMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ConsensusMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRun records an aggregation run outcome and duration.
func (m *ConsensusMetrics) RecordRun(status string, duration time.Duration, rowCount int) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.rowsEmittedTotal.Add(float64(rowCount))
}

// RecordAgreement records the agreement outcome of one aggregated field.
func (m *ConsensusMetrics) RecordAgreement(agreement float64) {
	switch {
	case agreement == 1.0:
		m.unanimousTotal.Inc()
	case agreement > 0:
		m.majorityTotal.Inc()
	default:
		m.noConsensusTotal.Inc()
	}
}
