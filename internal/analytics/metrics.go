package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRecordsProcessed   = "analytics_records_processed_total"
	MetricRecordsRejected    = "analytics_records_rejected_total"
	MetricValidationIssues   = "analytics_validation_issues_total"
	MetricRecordsDerived     = "analytics_records_derived_total"
	MetricAggregatedBuckets  = "analytics_aggregated_buckets"
	MetricAggregationSeconds = "analytics_aggregation_duration_seconds"
)

// Issue severities for labeling.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Metrics contains Prometheus metrics for the metrics pipeline.
// All operations are thread-safe.
type Metrics struct {
	recordsProcessed   prometheus.Counter
	recordsRejected    prometheus.Counter
	validationIssues   *prometheus.CounterVec
	recordsDerived     prometheus.Counter
	aggregatedBuckets  *prometheus.GaugeVec
	aggregationSeconds prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		recordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsProcessed,
			Help: "Total number of raw records turned into metric records",
		}),
		recordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsRejected,
			Help: "Total number of raw inputs rejected as non-records",
		}),
		validationIssues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricValidationIssues,
				Help: "Total number of validation issues by severity and field",
			},
			[]string{"severity", "field"},
		),
		recordsDerived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsDerived,
			Help: "Total number of records passed through derivation",
		}),
		aggregatedBuckets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricAggregatedBuckets,
				Help: "Number of buckets produced by the last aggregation by granularity",
			},
			[]string{"granularity"},
		),
		aggregationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricAggregationSeconds,
			Help:    "Histogram of aggregation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// AddProcessed adds n to the processed records counter.
func (m *Metrics) AddProcessed(n int) {
	m.recordsProcessed.Add(float64(n))
}

// AddRejected adds n to the rejected inputs counter.
func (m *Metrics) AddRejected(n int) {
	m.recordsRejected.Add(float64(n))
}

// IncValidationIssue increments the issue counter for a severity and field.
func (m *Metrics) IncValidationIssue(severity, field string) {
	m.validationIssues.WithLabelValues(severity, field).Inc()
}

// AddDerived adds n to the derived records counter.
func (m *Metrics) AddDerived(n int) {
	m.recordsDerived.Add(float64(n))
}

// SetAggregatedBuckets sets the bucket count for a granularity.
func (m *Metrics) SetAggregatedBuckets(granularity string, count int) {
	m.aggregatedBuckets.WithLabelValues(granularity).Set(float64(count))
}

// ObserveAggregationDuration records an aggregation duration sample.
func (m *Metrics) ObserveAggregationDuration(seconds float64) {
	m.aggregationSeconds.Observe(seconds)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.recordsProcessed,
		m.recordsRejected,
		m.validationIssues,
		m.recordsDerived,
		m.aggregatedBuckets,
		m.aggregationSeconds,
	}
}
