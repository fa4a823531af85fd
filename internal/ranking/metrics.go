package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankingBatchesTotal            = "ranking_batches_total"
	MetricRankingBatchDuration           = "ranking_batch_duration_seconds"
	MetricRankingItemsScored             = "ranking_items_scored_total"
	MetricRankingItemsSkipped            = "ranking_items_skipped_total"
	MetricRankingFactorRejections        = "ranking_factor_rejections_total"
	MetricRankingRecomputeTotal          = "ranking_recompute_total"
	MetricRankingRecomputeErrors         = "ranking_recompute_errors_total"
	MetricRankingRecomputeDuration       = "ranking_recompute_duration_seconds"
	MetricRankingLastRecomputeTimestamp  = "ranking_last_recompute_timestamp"
	MetricRankingLastRecomputeCategories = "ranking_last_recompute_category_count"
)

// Factor rejection reasons for labeling.
const (
	RejectionSumMismatch = "sum_mismatch"
	RejectionOutOfRange  = "out_of_range"
)

// Metrics contains Prometheus metrics for scoring and recomputation.
// All operations are thread-safe.
type Metrics struct {
	batchesTotal            prometheus.Counter
	batchDuration           prometheus.Histogram
	itemsScored             prometheus.Counter
	itemsSkipped            *prometheus.CounterVec
	factorRejections        *prometheus.CounterVec
	recomputeTotal          prometheus.Counter
	recomputeErrors         prometheus.Counter
	recomputeDuration       prometheus.Histogram
	lastRecomputeTimestamp  prometheus.Gauge
	lastRecomputeCategories prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankingBatchesTotal,
			Help: "Total number of ranking batches scored",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankingBatchDuration,
			Help:    "Histogram of ranking batch duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}),
		itemsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankingItemsScored,
			Help: "Total number of items scored in ranking batches",
		}),
		itemsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankingItemsSkipped,
				Help: "Total number of items left out of ranking batches by reason",
			},
			[]string{"reason"},
		),
		factorRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankingFactorRejections,
				Help: "Total number of rejected ranking factor updates by reason",
			},
			[]string{"reason"},
		),
		recomputeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankingRecomputeTotal,
			Help: "Total number of ranking recompute cycles",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankingRecomputeErrors,
			Help: "Total number of ranking recompute errors",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankingRecomputeDuration,
			Help:    "Histogram of ranking recompute cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
		lastRecomputeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRankingLastRecomputeTimestamp,
			Help: "Unix timestamp of the last ranking recompute cycle",
		}),
		lastRecomputeCategories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRankingLastRecomputeCategories,
			Help: "Number of categories ranked in the last recompute cycle",
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

// IncBatches increments the batch counter.
func (m *Metrics) IncBatches() {
	m.batchesTotal.Inc()
}

// ObserveBatchDuration records a batch duration sample.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	m.batchDuration.Observe(seconds)
}

// AddScored adds n to the scored items counter.
func (m *Metrics) AddScored(n int) {
	m.itemsScored.Add(float64(n))
}

// IncSkipped increments the skipped items counter for a reason.
func (m *Metrics) IncSkipped(reason string) {
	m.itemsSkipped.WithLabelValues(reason).Inc()
}

// IncFactorRejections increments the factor rejection counter for a reason.
func (m *Metrics) IncFactorRejections(reason string) {
	m.factorRejections.WithLabelValues(reason).Inc()
}

// IncRecomputeTotal increments the recompute total counter.
func (m *Metrics) IncRecomputeTotal() {
	m.recomputeTotal.Inc()
}

// IncRecomputeErrors increments the recompute errors counter.
func (m *Metrics) IncRecomputeErrors() {
	m.recomputeErrors.Inc()
}

// ObserveRecomputeDuration records a recompute duration sample.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}

// SetLastRecomputeTimestamp sets the last recompute timestamp gauge.
func (m *Metrics) SetLastRecomputeTimestamp(timestamp float64) {
	m.lastRecomputeTimestamp.Set(timestamp)
}

// SetLastRecomputeCategories sets the last recompute category count gauge.
func (m *Metrics) SetLastRecomputeCategories(count float64) {
	m.lastRecomputeCategories.Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.batchesTotal,
		m.batchDuration,
		m.itemsScored,
		m.itemsSkipped,
		m.factorRejections,
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputeCategories,
	}
}
