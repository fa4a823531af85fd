// Package jobs provides Prometheus metrics shared by pipeline jobs: the batch
// stages of a run and the periodic ranking recompute.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricJobsTotal      = "rankiro_jobs_total"
	MetricJobsDuration   = "rankiro_jobs_duration_seconds"
	MetricJobErrorsTotal = "rankiro_job_errors_total"
	MetricJobLastSuccess = "rankiro_job_last_success_timestamp_seconds"
)

// Job types used as label values.
const (
	JobTypeMetricsIngest    = "metrics_ingest"
	JobTypeMetricsAggregate = "metrics_aggregate"
	JobTypeRankingBatch     = "ranking_batch"
	JobTypeRankingRecompute = "ranking_recompute"
	JobTypeReportExport     = "report_export"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Error types.
const (
	ErrorTypeTimeout  = "timeout"
	ErrorTypeCanceled = "canceled"
	ErrorTypeInternal = "internal"
)

// Metrics contains Prometheus metrics for job executions.
// All operations are thread-safe.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobsDuration *prometheus.HistogramVec
	jobErrors    *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
	now          func() time.Time
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobsTotal,
				Help: "Total number of job executions by type and status",
			},
			[]string{"job_type", "status"},
		),
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricJobsDuration,
				Help:    "Histogram of job duration in seconds by job type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobErrorsTotal,
				Help: "Total number of job errors by type and error type",
			},
			[]string{"job_type", "error_type"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricJobLastSuccess,
				Help: "Unix time of the last successful execution by job type",
			},
			[]string{"job_type"},
		),
		now: time.Now,
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncJobsTotal increments the jobs counter. A successful job also moves the
// last-success timestamp.
func (m *Metrics) IncJobsTotal(jobType, status string) {
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
	if status == StatusSuccess {
		m.lastSuccess.WithLabelValues(jobType).Set(float64(m.now().Unix()))
	}
}

// ObserveJobDuration records a job duration sample.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

// IncJobErrors increments the job errors counter.
func (m *Metrics) IncJobErrors(jobType, errorType string) {
	m.jobErrors.WithLabelValues(jobType, errorType).Inc()
}

// Track runs fn as one execution of jobType and records its status,
// duration and error type. fn's error is returned unchanged.
func (m *Metrics) Track(jobType string, fn func() error) error {
	start := m.now()
	err := fn()
	m.ObserveJobDuration(jobType, m.now().Sub(start).Seconds())

	if err != nil {
		m.IncJobsTotal(jobType, StatusFailure)
		m.IncJobErrors(jobType, ErrorType(err))
		return err
	}
	m.IncJobsTotal(jobType, StatusSuccess)
	return nil
}

// ErrorType classifies an error for the error_type label.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	default:
		return ErrorTypeInternal
	}
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobsDuration,
		m.jobErrors,
		m.lastSuccess,
	}
}
