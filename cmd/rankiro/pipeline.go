package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/rankiro/internal/analytics"
	"github.com/onnwee/rankiro/internal/jobs"
	"github.com/onnwee/rankiro/internal/ranking"
	"github.com/onnwee/rankiro/internal/tracing"
)

// reportExporter uploads aggregated buckets and returns the object key.
type reportExporter interface {
	Export(ctx context.Context, granularity analytics.Granularity, buckets []analytics.AggregatedMetrics) (string, error)
}

// pipeline runs one batch: metrics processing, optional report export and
// per-category ranking.
type pipeline struct {
	logger      *slog.Logger
	processor   *analytics.Processor
	service     *ranking.Service
	jobs        *jobs.Metrics
	exporter    reportExporter // nil disables export
	granularity analytics.Granularity
}

// runSummary describes the outcome of a batch run.
type runSummary struct {
	RunID              string
	Records            int
	Rejected           int
	ValidationErrors   int
	ValidationWarnings int
	Buckets            []analytics.AggregatedMetrics
	ReportKey          string
	Rankings           map[string][]ranking.Score
	Skipped            int
}

func (p *pipeline) run(ctx context.Context, raws []any, items []ranking.Item) (summary *runSummary, err error) {
	summary = &runSummary{
		RunID:    uuid.NewString(),
		Rankings: make(map[string][]ranking.Score),
	}
	logger := p.logger.With("run_id", summary.RunID)

	ctx, endSpan := tracing.StartSpan(ctx, "rankiro.run")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx,
		attribute.String("run_id", summary.RunID),
		attribute.String("granularity", string(p.granularity)),
		attribute.Int("raw_records", len(raws)),
		attribute.Int("items", len(items)),
	)

	var records []analytics.MetricRecord
	if err := p.jobs.Track(jobs.JobTypeMetricsIngest, func() error {
		processed := p.processor.Process(raws)
		summary.Records = len(processed.Records)
		summary.Rejected = len(processed.Rejected)

		validation := p.processor.Validate(processed.Records)
		summary.ValidationErrors = len(validation.Errors)
		summary.ValidationWarnings = len(validation.Warnings)

		records = p.processor.Derive(processed.Records)
		return nil
	}); err != nil {
		return summary, fmt.Errorf("processing metrics: %w", err)
	}

	if err := p.jobs.Track(jobs.JobTypeMetricsAggregate, func() error {
		buckets, err := p.processor.Aggregate(records, p.granularity)
		summary.Buckets = buckets
		return err
	}); err != nil {
		return summary, fmt.Errorf("aggregating metrics: %w", err)
	}

	if p.exporter != nil {
		if err := p.jobs.Track(jobs.JobTypeReportExport, func() error {
			key, err := p.exporter.Export(ctx, p.granularity, summary.Buckets)
			summary.ReportKey = key
			return err
		}); err != nil {
			return summary, fmt.Errorf("exporting report: %w", err)
		}
	}

	byCategory := groupByCategory(items)
	factors := p.service.Factors()
	for _, category := range slices.Sorted(maps.Keys(byCategory)) {
		if err := p.jobs.Track(jobs.JobTypeRankingBatch, func() error {
			result, err := p.service.ScoreBatch(ctx, byCategory[category], records, factors)
			if err != nil {
				return err
			}
			summary.Rankings[category] = result.Scores
			summary.Skipped += len(result.Skipped)
			return nil
		}); err != nil {
			return summary, fmt.Errorf("ranking category %q: %w", category, err)
		}
	}

	logger.Info("batch run completed",
		"records", summary.Records,
		"rejected", summary.Rejected,
		"validation_errors", summary.ValidationErrors,
		"validation_warnings", summary.ValidationWarnings,
		"buckets", len(summary.Buckets),
		"report_key", summary.ReportKey,
		"categories", len(summary.Rankings),
		"skipped", summary.Skipped)

	return summary, nil
}

// groupByCategory splits items by category, keeping input order within each.
func groupByCategory(items []ranking.Item) map[string][]ranking.Item {
	groups := make(map[string][]ranking.Item)
	for _, item := range items {
		groups[item.Category] = append(groups[item.Category], item)
	}
	return groups
}

// loadDataSource replaces the contents of ds with items and the records parsed
// from raws, and marks every category dirty.
func loadDataSource(processor *analytics.Processor, ds *ranking.InMemoryDataSource, dirty *ranking.DirtyTracker, raws []any, items []ranking.Item) int {
	processed := processor.Process(raws)

	ds.Reset()
	for _, item := range items {
		ds.AddItem(item)
	}
	ds.AddMetrics(processed.Records...)

	categories := ds.Categories()
	for _, c := range categories {
		dirty.MarkDirty(c)
	}
	return len(categories)
}
