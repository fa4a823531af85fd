// Package main is the entry point for the rankiro metrics and ranking pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/rankiro/internal/analytics"
	"github.com/onnwee/rankiro/internal/config"
	"github.com/onnwee/rankiro/internal/jobs"
	"github.com/onnwee/rankiro/internal/logging"
	"github.com/onnwee/rankiro/internal/ranking"
	"github.com/onnwee/rankiro/internal/report"
	"github.com/onnwee/rankiro/internal/store"
	"github.com/onnwee/rankiro/internal/tracing"
)

// options are the command-line flags.
type options struct {
	configPath  string
	metricsPath string
	itemsPath   string
	granularity string
	export      bool
	watch       bool
	top         int
}

func main() {
	var opts options
	help := flag.Bool("help", false, "display help message")
	flag.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&opts.metricsPath, "metrics", "", "raw metrics file (.json, .ndjson, .jsonl or .cbor)")
	flag.StringVar(&opts.itemsPath, "items", "", "item catalog file (.json, .ndjson, .jsonl or .cbor)")
	flag.StringVar(&opts.granularity, "granularity", "", "aggregation granularity override (hour, day, week, month)")
	flag.BoolVar(&opts.export, "export", false, "upload the aggregated report to object storage")
	flag.BoolVar(&opts.watch, "watch", false, "keep recomputing rankings until interrupted; SIGHUP reloads inputs")
	flag.IntVar(&opts.top, "top", 10, "rankings printed per category (0 prints all)")
	flag.Parse()

	if *help {
		fmt.Println("Rankiro Metrics and Ranking Pipeline")
		fmt.Println()
		fmt.Println("Usage: rankiro -metrics metrics.json -items items.json [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(opts.configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
		os.Exit(1)
	}
	if opts.granularity != "" {
		cfg.AggregationGranularity = opts.granularity
	}

	logger := logging.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger, os.Stdout); err != nil {
		logger.Error("rankiro failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger, out io.Writer) error {
	granularity, err := analytics.ParseGranularity(cfg.AggregationGranularity)
	if err != nil {
		return err
	}

	tracingCfg := cfg.Tracing()
	tracingCfg.Logger = logger
	tp, err := tracing.NewProvider(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("tracing shutdown failed", "error", shutdownErr)
		}
	}()

	registry := prometheus.NewRegistry()
	analyticsMetrics := analytics.NewMetrics()
	rankingMetrics := ranking.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{
		analyticsMetrics.Register,
		rankingMetrics.Register,
		jobMetrics.Register,
	} {
		if err := register(registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	rankingStore, closer, err := store.Open(ctx, cfg.Store())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			logger.Error("failed to close ranking store", "error", closeErr)
		}
	}()

	processor := analytics.NewProcessor(analytics.ProcessorConfig{
		Logger:  logger,
		Metrics: analyticsMetrics,
	})
	service := ranking.NewService(ranking.ServiceConfig{
		Logger:  logger,
		Metrics: rankingMetrics,
		Workers: cfg.ScoreWorkers,
	}, ranking.NewWeightedAlgorithm(), rankingStore)

	factors, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		return err
	}
	if err := service.AcceptFactors(*factors); err != nil {
		return fmt.Errorf("calibration rejected: %w", err)
	}

	if opts.watch {
		w := &watcher{
			logger:    logger,
			processor: processor,
			service:   service,
			jobConfig: ranking.RecomputeJobConfig{
				Interval: cfg.RecomputeInterval,
				Timeout:  cfg.RecomputeTimeout,
				Logger:   logger,
				Metrics:  rankingMetrics,
				Jobs:     jobMetrics,
			},
			metricsPath:     opts.metricsPath,
			itemsPath:       opts.itemsPath,
			calibrationPath: cfg.RankingCalibrationPath,
			registry:        registry,
			textfile:        cfg.MetricsTextfile,
		}
		return w.run(ctx)
	}

	raws, items, err := readInputs(opts.metricsPath, opts.itemsPath)
	if err != nil {
		return err
	}

	p := &pipeline{
		logger:      logger,
		processor:   processor,
		service:     service,
		jobs:        jobMetrics,
		granularity: granularity,
	}
	if opts.export {
		if !cfg.ReportEnabled() {
			return errors.New("-export requires REPORT_BUCKET, REPORT_ENDPOINT and report credentials")
		}
		reportCfg := cfg.Report()
		reportCfg.Logger = logger
		exporter, err := report.NewExporter(reportCfg)
		if err != nil {
			return err
		}
		p.exporter = exporter
	}

	summary, err := p.run(ctx, raws, items)
	if err != nil {
		return err
	}

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, registry); err != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	return printRankings(out, summary, opts.top)
}

// printRankings writes the top scores of every category as a table.
func printRankings(out io.Writer, summary *runSummary, top int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tRANK\tITEM\tSCORE")
	for _, category := range slices.Sorted(maps.Keys(summary.Rankings)) {
		scores := summary.Rankings[category]
		if top > 0 && len(scores) > top {
			scores = scores[:top]
		}
		for _, s := range scores {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.4f\n", category, s.Rank, s.ItemID, s.Score)
		}
	}
	if summary.ReportKey != "" {
		fmt.Fprintf(tw, "\nreport: %s\n", summary.ReportKey)
	}
	return tw.Flush()
}
