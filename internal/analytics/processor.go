package analytics

import (
	"context"
	"log/slog"
	"time"
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	// Logger for pipeline activity.
	Logger *slog.Logger
	// Metrics for pipeline tracking. Optional.
	Metrics *Metrics
	// Aggregator used by Aggregate. Defaults to NewAggregator().
	Aggregator *Aggregator
}

// Processor runs the metrics pipeline stages with logging and metrics.
// The stages themselves are the pure package functions.
type Processor struct {
	logger     *slog.Logger
	metrics    *Metrics
	aggregator *Aggregator
}

// NewProcessor creates a Processor.
func NewProcessor(config ProcessorConfig) *Processor {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Aggregator == nil {
		config.Aggregator = NewAggregator()
	}
	return &Processor{
		logger:     config.Logger,
		metrics:    config.Metrics,
		aggregator: config.Aggregator,
	}
}

// Process builds records from raw inputs, logging each rejection.
func (p *Processor) Process(raws []any) ProcessResult {
	result := ProcessMetrics(raws)
	for _, rej := range result.Rejected {
		p.logger.Debug("skipping raw metrics input",
			"index", rej.Index,
			"reason", rej.Reason)
	}
	if p.metrics != nil {
		p.metrics.AddProcessed(len(result.Records))
		p.metrics.AddRejected(len(result.Rejected))
	}
	p.logger.Info("processed raw metrics",
		"inputs", len(raws),
		"records", len(result.Records),
		"rejected", len(result.Rejected))
	return result
}

// Validate validates records and logs a summary of the issues found.
func (p *Processor) Validate(records []MetricRecord) ValidationResult {
	result := Validate(records)
	if p.metrics != nil {
		for _, e := range result.Errors {
			p.metrics.IncValidationIssue(SeverityError, e.Field)
		}
		for _, w := range result.Warnings {
			p.metrics.IncValidationIssue(SeverityWarning, w.Field)
		}
	}
	for _, e := range result.Errors {
		p.logger.Debug("metric validation error",
			"item_id", e.ItemID,
			"field", e.Field,
			"message", e.Message)
	}
	level := slog.LevelInfo
	if !result.IsValid {
		level = slog.LevelWarn
	}
	p.logger.Log(context.Background(), level, "validated metric records",
		"records", len(records),
		"valid", result.IsValid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))
	return result
}

// Derive fills missing derived fields.
func (p *Processor) Derive(records []MetricRecord) []MetricRecord {
	derived := DeriveMissing(records)
	if p.metrics != nil {
		p.metrics.AddDerived(len(derived))
	}
	return derived
}

// Aggregate groups records into buckets of the given granularity.
func (p *Processor) Aggregate(records []MetricRecord, g Granularity) ([]AggregatedMetrics, error) {
	start := time.Now()
	buckets, err := p.aggregator.Aggregate(records, g)
	if err != nil {
		p.logger.Error("failed to aggregate metrics",
			"granularity", string(g),
			"error", err)
		return nil, err
	}
	duration := time.Since(start).Seconds()
	if p.metrics != nil {
		p.metrics.SetAggregatedBuckets(string(g), len(buckets))
		p.metrics.ObserveAggregationDuration(duration)
	}
	p.logger.Info("aggregated metrics",
		"granularity", string(g),
		"records", len(records),
		"buckets", len(buckets),
		"duration_seconds", duration)
	return buckets, nil
}
