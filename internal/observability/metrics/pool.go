// Package metrics provides Prometheus metrics for the sampling and consensus
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics contains Prometheus metrics for sample pool operations.
type PoolMetrics struct {
	registry *prometheus.Registry

	expansionsTotal     prometheus.Counter
	entriesCreatedTotal prometheus.Counter
	claimsTotal         *prometheus.CounterVec
	claimDuration       prometheus.Histogram
	submissionsTotal    *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewPoolMetrics creates and registers new sample pool metrics.
func NewPoolMetrics(registry *prometheus.Registry) (*PoolMetrics, error) {
	m := &PoolMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PoolMetrics) initMetrics() {
	m.expansionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "samplepool_expansions_total",
		Help: "Total number of sample pool expansions",
	})

	m.entriesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "samplepool_entries_created_total",
		Help: "Total number of pool entries created",
	})

	m.claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samplepool_claims_total",
			Help: "Total number of claim attempts",
		},
		[]string{"status"}, // status: claimed, empty
	)

	m.claimDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "samplepool_claim_duration_seconds",
		Help:    "Time taken to claim the next pool entry",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	m.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "samplepool_submissions_total",
			Help: "Total number of coding submissions",
		},
		[]string{"status"}, // status: accepted, conflict
	)

	m.collectors = []prometheus.Collector{
		m.expansionsTotal,
		m.entriesCreatedTotal,
		m.claimsTotal,
		m.claimDuration,
		m.submissionsTotal,
	}
}

// Describe implements the Collector interface
func (m *PoolMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PoolMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordExpansion records one pool expansion creating the given entry count.
func (m *PoolMetrics) RecordExpansion(entryCount int) {
	m.expansionsTotal.Inc()
	m.entriesCreatedTotal.Add(float64(entryCount))
}

// RecordClaim records a claim attempt and its duration.
func (m *PoolMetrics) RecordClaim(status string, duration time.Duration) {
	m.claimsTotal.WithLabelValues(status).Inc()
	m.claimDuration.Observe(duration.Seconds())
}

// RecordSubmit records a coding submission outcome.
func (m *PoolMetrics) RecordSubmit(status string) {
	m.submissionsTotal.WithLabelValues(status).Inc()
}
