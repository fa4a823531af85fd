package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/rankiro/internal/analytics"
)

// DataSource provides the items and metrics a recompute cycle ranks.
type DataSource interface {
	// ItemsByCategory returns every item in a category.
	ItemsByCategory(ctx context.Context, category string) ([]Item, error)
	// MetricsForItems returns the metric records of the given items.
	MetricsForItems(ctx context.Context, itemIDs []string) ([]analytics.MetricRecord, error)
}

// JobTracker records one execution of a background job.
// jobs.Metrics implements it.
type JobTracker interface {
	Track(jobType string, fn func() error) error
}

// JobTypeRankingRecompute labels recompute cycles.
const JobTypeRankingRecompute = "ranking_recompute"

// Recompute job defaults.
const (
	DefaultRecomputeInterval = 30 * time.Second
	DefaultRecomputeTimeout  = 30 * time.Second
)

// ErrRecomputeTimeout is returned by a cycle that ran out of time before
// visiting every dirty category.
var ErrRecomputeTimeout = errors.New("ranking recompute timed out")

// RecomputeJobConfig configures a RecomputeJob.
type RecomputeJobConfig struct {
	// Interval between cycles.
	Interval time.Duration
	// Timeout bounds a single cycle.
	Timeout time.Duration
	Logger  *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
	// Jobs is optional.
	Jobs JobTracker
}

// RecomputeJob re-ranks the categories marked dirty, once per interval.
// A category stays dirty until it has been ranked and saved.
type RecomputeJob struct {
	config  RecomputeJobConfig
	dirty   *DirtyTracker
	source  DataSource
	service *Service

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// cycleMu serializes cycles from the loop and RecomputeNow.
	cycleMu sync.Mutex
}

// NewRecomputeJob creates a job that ranks dirty categories from source
// with service.
func NewRecomputeJob(config RecomputeJobConfig, dirty *DirtyTracker, source DataSource, service *Service) *RecomputeJob {
	if config.Interval <= 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecomputeJob{
		config:  config,
		dirty:   dirty,
		source:  source,
		service: service,
	}
}

// Start runs the job in the background until ctx is done or Stop is
// called. Starting a running job does nothing.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)
	return nil
}

// Stop cancels the background loop and waits for an in-flight cycle to
// finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning reports whether the background loop is active.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel != nil
}

func (j *RecomputeJob) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.config.Logger.Info("ranking recompute job started", "interval", j.config.Interval)
	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("ranking recompute job stopped")
			return
		case <-ticker.C:
			j.cycle(ctx)
		}
	}
}

// RecomputeNow runs one cycle immediately, after any cycle already in
// progress.
func (j *RecomputeJob) RecomputeNow() {
	j.cycle(context.Background())
}

// cycle ranks every dirty category. A cycle with nothing dirty is not
// recorded.
func (j *RecomputeJob) cycle(parent context.Context) {
	j.cycleMu.Lock()
	defer j.cycleMu.Unlock()

	categories := j.dirty.DirtyCategories()
	if len(categories) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parent, j.config.Timeout)
	defer cancel()

	run := func() error { return j.recompute(ctx, categories) }
	if j.config.Jobs != nil {
		tracked := run
		run = func() error { return j.config.Jobs.Track(JobTypeRankingRecompute, tracked) }
	}

	if err := run(); err != nil {
		j.config.Logger.Error("ranking recompute failed",
			"dirty_count", len(categories),
			"error", err)
	}
}

func (j *RecomputeJob) recompute(ctx context.Context, categories []string) error {
	start := time.Now()
	var (
		errs    []error
		ranked  int
		scored  int
		skipped int
	)

	j.config.Logger.Info("recomputing rankings", "dirty_count", len(categories))

	for _, category := range categories {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%w after %d of %d categories: %w", ErrRecomputeTimeout, ranked, len(categories), ctx.Err()))
			break
		}

		result, err := j.recomputeCategory(ctx, category)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %q: %w", category, err))
			continue
		}
		j.dirty.ClearDirty(category)
		ranked++
		scored += len(result.Scores)
		skipped += len(result.Skipped)
	}

	duration := time.Since(start).Seconds()
	if m := j.config.Metrics; m != nil {
		m.IncRecomputeTotal()
		m.ObserveRecomputeDuration(duration)
		m.SetLastRecomputeTimestamp(float64(time.Now().Unix()))
		m.SetLastRecomputeCategories(float64(ranked))
		if len(errs) > 0 {
			m.IncRecomputeErrors()
		}
	}

	j.config.Logger.Info("ranking recompute completed",
		"duration_seconds", duration,
		"categories_ranked", ranked,
		"categories_failed", len(categories)-ranked,
		"items_scored", scored,
		"items_skipped", skipped)

	return errors.Join(errs...)
}

// recomputeCategory loads a category, fills derived metrics and ranks it
// with the service's current factors.
func (j *RecomputeJob) recomputeCategory(ctx context.Context, category string) (*BatchResult, error) {
	items, err := j.source.ItemsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	records, err := j.source.MetricsForItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading metrics: %w", err)
	}

	return j.service.ScoreBatch(ctx, items, analytics.DeriveMissing(records), j.service.Factors())
}
