package ranking

import (
	"time"

	"github.com/onnwee/rankiro/internal/analytics"
)

const (
	// TrendingBoostMultiplier is applied to items younger than TrendingBoostWindow.
	TrendingBoostMultiplier = 1.10
	// TrendingBoostWindow is the age under which an item is boosted.
	TrendingBoostWindow = 24 * time.Hour
)

// Algorithm computes ranking scores. Implementations are swappable.
type Algorithm interface {
	// CalculateScore returns a raw score. It must be deterministic and
	// depend only on its arguments.
	CalculateScore(item Item, m analytics.MetricRecord, f Factors) float64
	// NormalizeScore maps score into [0, 1] relative to min and max.
	NormalizeScore(score, min, max float64) float64
	// ApplyTrendingBoost adjusts a score for fresh items.
	ApplyTrendingBoost(score float64, item Item, m analytics.MetricRecord) float64
}

// WeightedAlgorithm is the default Algorithm: a weighted sum of the
// components computed by ComputeComponents.
type WeightedAlgorithm struct {
	now func() time.Time
}

// AlgorithmOption configures a WeightedAlgorithm.
type AlgorithmOption func(*WeightedAlgorithm)

// WithClock overrides the clock used by ApplyTrendingBoost.
func WithClock(now func() time.Time) AlgorithmOption {
	return func(a *WeightedAlgorithm) {
		if now != nil {
			a.now = now
		}
	}
}

// NewWeightedAlgorithm creates the default algorithm.
func NewWeightedAlgorithm(opts ...AlgorithmOption) *WeightedAlgorithm {
	a := &WeightedAlgorithm{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CalculateScore implements Algorithm.
func (a *WeightedAlgorithm) CalculateScore(item Item, m analytics.MetricRecord, f Factors) float64 {
	return CompositeScore(ComputeComponents(item, m), f)
}

// NormalizeScore implements Algorithm.
// Formula: (score - min) / (max - min)
//
// There is no guard for max == min: the result follows IEEE 754, so it is
// NaN when score also equals min and ±Inf otherwise.
func (a *WeightedAlgorithm) NormalizeScore(score, min, max float64) float64 {
	return (score - min) / (max - min)
}

// ApplyTrendingBoost implements Algorithm. Items uploaded less than
// TrendingBoostWindow ago are multiplied by TrendingBoostMultiplier.
func (a *WeightedAlgorithm) ApplyTrendingBoost(score float64, item Item, _ analytics.MetricRecord) float64 {
	if a.now().Sub(item.UploadedAt) < TrendingBoostWindow {
		return score * TrendingBoostMultiplier
	}
	return score
}
