package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/rankiro/internal/analytics"
	"github.com/onnwee/rankiro/internal/tracing"
)

// Rankings query defaults.
const (
	DefaultRankingsLimit  = 50
	DefaultRankingsOffset = 0
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Logger for scoring activity.
	Logger *slog.Logger
	// Metrics for scoring tracking. Optional.
	Metrics *Metrics
	// Workers bounds parallel scoring within a batch. Defaults to GOMAXPROCS.
	Workers int
}

// Service scores and ranks items and keeps the accepted ranking factors.
type Service struct {
	config    ServiceConfig
	algorithm Algorithm
	store     Store

	mu      sync.RWMutex
	factors Factors
}

// NewService creates a ranking service starting with DefaultFactors. A nil
// store keeps scores in memory.
func NewService(config ServiceConfig, algorithm Algorithm, store Store) *Service {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if algorithm == nil {
		algorithm = NewWeightedAlgorithm()
	}
	if store == nil {
		store = NewInMemoryStore()
	}
	return &Service{
		config:    config,
		algorithm: algorithm,
		store:     store,
		factors:   DefaultFactors(),
	}
}

// ScoreOne computes the boosted score of a single item. The result is
// unranked and stamped with the current time.
func (s *Service) ScoreOne(item Item, m analytics.MetricRecord, f Factors) Score {
	base := s.algorithm.CalculateScore(item, m, f)
	return Score{
		ItemID:     item.ID,
		Score:      s.algorithm.ApplyTrendingBoost(base, item, m),
		Rank:       Unranked,
		Category:   item.Category,
		ComputedAt: time.Now(),
		Factors:    f,
	}
}

// ScoreBatch scores every item that has metrics, ranks the results and
// saves them to the store.
//
// When several records share an item id the last one wins. Items without
// metrics are left out of the ranking and listed in BatchResult.Skipped.
// Scores are sorted once over the complete set, highest first with input
// order breaking ties, and given ranks 1..N. If saving fails the ranked
// result is still returned along with the error.
func (s *Service) ScoreBatch(ctx context.Context, items []Item, metrics []analytics.MetricRecord, f Factors) (result *BatchResult, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "ranking.score_batch")
	defer func() { endSpan(err) }()

	start := time.Now()

	latest := make(map[string]analytics.MetricRecord, len(metrics))
	for _, m := range metrics {
		latest[m.ItemID] = m
	}

	slots := make([]*Score, len(items))
	result = &BatchResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, item := range items {
		m, ok := latest[item.ID]
		if !ok {
			result.Skipped = append(result.Skipped, SkippedItem{ItemID: item.ID, Reason: SkipReasonNoMetrics})
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score := s.ScoreOne(item, m, f)
			slots[i] = &score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring batch: %w", err)
	}

	scores := make([]Score, 0, len(items)-len(result.Skipped))
	for _, slot := range slots {
		if slot != nil {
			scores = append(scores, *slot)
		}
	}

	slices.SortStableFunc(scores, func(a, b Score) int {
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	result.Scores = scores

	tracing.SetAttributes(ctx,
		attribute.Int("ranking.items", len(items)),
		attribute.Int("ranking.scored", len(scores)),
		attribute.Int("ranking.skipped", len(result.Skipped)))

	duration := time.Since(start).Seconds()
	if s.config.Metrics != nil {
		s.config.Metrics.IncBatches()
		s.config.Metrics.ObserveBatchDuration(duration)
		s.config.Metrics.AddScored(len(scores))
		for _, sk := range result.Skipped {
			s.config.Metrics.IncSkipped(sk.Reason)
		}
	}

	for _, sk := range result.Skipped {
		s.config.Logger.Debug("item skipped from ranking",
			"item_id", sk.ItemID,
			"reason", sk.Reason)
		tracing.AddEvent(ctx, "item_skipped",
			attribute.String("item_id", sk.ItemID),
			attribute.String("reason", sk.Reason))
	}

	if err := s.store.Save(ctx, scores); err != nil {
		s.config.Logger.Error("failed to save ranking scores",
			"scores", len(scores),
			"error", err)
		return result, fmt.Errorf("failed to save ranking scores: %w", err)
	}

	s.config.Logger.Info("ranking batch completed",
		"duration_seconds", duration,
		"items", len(items),
		"scored", len(scores),
		"skipped", len(result.Skipped))

	return result, nil
}

// AcceptFactors validates f and, if valid, makes it the current factors.
// A rejected update leaves the current factors unchanged.
func (s *Service) AcceptFactors(f Factors) error {
	if err := ValidateFactors(f); err != nil {
		if s.config.Metrics != nil {
			reason := RejectionOutOfRange
			if errors.Is(err, ErrFactorSumMismatch) {
				reason = RejectionSumMismatch
			}
			s.config.Metrics.IncFactorRejections(reason)
		}
		s.config.Logger.Warn("rejected ranking factors",
			"factors", f,
			"error", err)
		return err
	}

	s.mu.Lock()
	previous := s.factors
	s.factors = f
	s.mu.Unlock()

	s.config.Logger.Info("accepted ranking factors",
		"previous", previous,
		"factors", f)
	return nil
}

// Factors returns the currently accepted factors.
func (s *Service) Factors() Factors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factors
}

// Rankings returns the latest scores of a category, best first.
// A limit <= 0 uses DefaultRankingsLimit; a negative offset uses
// DefaultRankingsOffset.
func (s *Service) Rankings(ctx context.Context, category string, limit, offset int) ([]Score, error) {
	if limit <= 0 {
		limit = DefaultRankingsLimit
	}
	if offset < 0 {
		offset = DefaultRankingsOffset
	}
	scores, err := s.store.ByCategory(ctx, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get rankings for category %q: %w", category, err)
	}
	return scores, nil
}

// History returns an item's saved scores, optionally bounded by r.
func (s *Service) History(ctx context.Context, itemID string, r *DateRange) ([]Score, error) {
	var start, end *time.Time
	if r != nil {
		start, end = r.Start, r.End
	}
	scores, err := s.store.History(ctx, itemID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking history for %q: %w", itemID, err)
	}
	return scores, nil
}

// TopRanked returns the best latest scores across all categories.
func (s *Service) TopRanked(ctx context.Context, limit int) ([]Score, error) {
	if limit <= 0 {
		limit = DefaultRankingsLimit
	}
	scores, err := s.store.TopRanked(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top ranked scores: %w", err)
	}
	return scores, nil
}
