package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/rankiro/internal/analytics"
	"github.com/onnwee/rankiro/internal/ingest"
	"github.com/onnwee/rankiro/internal/jobs"
	"github.com/onnwee/rankiro/internal/ranking"
)

// watcher keeps rankings fresh by running the recompute job until the
// context is cancelled. SIGHUP reloads the input files and calibration.
type watcher struct {
	logger          *slog.Logger
	processor       *analytics.Processor
	service         *ranking.Service
	jobConfig       ranking.RecomputeJobConfig
	metricsPath     string
	itemsPath       string
	calibrationPath string
	registry        prometheus.Gatherer
	textfile        string
}

func (w *watcher) run(ctx context.Context) error {
	dataSource := ranking.NewInMemoryDataSource()
	dirty := ranking.NewDirtyTracker()

	if err := w.reload(dataSource, dirty); err != nil {
		return err
	}

	job := ranking.NewRecomputeJob(w.jobConfig, dirty, dataSource, w.service)
	job.RecomputeNow()
	if err := job.Start(ctx); err != nil {
		return err
	}
	defer job.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	flush := time.NewTicker(w.jobConfig.Interval)
	defer flush.Stop()

	w.logger.Info("watching for recompute cycles",
		"interval", w.jobConfig.Interval,
		"timeout", w.jobConfig.Timeout)

	for {
		select {
		case <-ctx.Done():
			w.writeTextfile()
			return nil
		case <-hup:
			w.reloadCalibration()
			if err := w.reload(dataSource, dirty); err != nil {
				w.logger.Error("reload failed, keeping previous inputs", "error", err)
				continue
			}
			job.RecomputeNow()
		case <-flush.C:
			w.writeTextfile()
		}
	}
}

func (w *watcher) reload(dataSource *ranking.InMemoryDataSource, dirty *ranking.DirtyTracker) error {
	raws, items, err := readInputs(w.metricsPath, w.itemsPath)
	if err != nil {
		return err
	}
	categories := loadDataSource(w.processor, dataSource, dirty, raws, items)
	w.logger.Info("inputs loaded",
		"items", len(items),
		"categories", categories)
	return nil
}

func (w *watcher) reloadCalibration() {
	if w.calibrationPath == "" {
		return
	}
	factors, err := ranking.LoadCalibration(w.calibrationPath)
	if err != nil {
		w.logger.Warn("calibration reload failed, keeping current factors", "error", err)
		return
	}
	// A rejected update is logged and counted by the service.
	_ = w.service.AcceptFactors(*factors)
}

func (w *watcher) writeTextfile() {
	if w.textfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(w.textfile, w.registry); err != nil {
		w.logger.Warn("failed to write metrics textfile", "path", w.textfile, "error", err)
	}
}

// readInputs loads raw metrics and the item catalog. An empty path yields no
// entries.
func readInputs(metricsPath, itemsPath string) ([]any, []ranking.Item, error) {
	var (
		raws  []any
		items []ranking.Item
		err   error
	)
	if metricsPath != "" {
		if raws, err = ingest.ReadRecordsFile(metricsPath); err != nil {
			return nil, nil, err
		}
	}
	if itemsPath != "" {
		if items, err = ingest.ReadItemsFile(itemsPath); err != nil {
			return nil, nil, err
		}
	}
	return raws, items, nil
}

// jobs.Metrics records recompute cycles.
var _ ranking.JobTracker = (*jobs.Metrics)(nil)
