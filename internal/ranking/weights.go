package ranking

import (
	"math"
	"time"

	"github.com/onnwee/rankiro/internal/analytics"
)

const (
	// ViewsSaturation is the view count at which ViewsWeight reaches 1.0.
	ViewsSaturation = 10_000_000
	// RecencyWindow is the item age at which RecencyWeight reaches 0.
	RecencyWindow = 30 * 24 * time.Hour
	// TrendingVelocitySaturation is the views-per-hour rate at which
	// TrendingWeight reaches 1.0.
	TrendingVelocitySaturation = 100_000
	// neutralWeight is used when a component has no signal.
	neutralWeight = 0.5
)

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// logScale maps v onto [0, 1] logarithmically, reaching 1 at saturation.
func logScale(v, saturation float64) float64 {
	if v <= 0 {
		return 0
	}
	return clamp01(math.Log10(1+v) / math.Log10(1+saturation))
}

// ViewsWeight computes a log-scaled view count score in [0, 1].
// Formula: log10(1 + views) / log10(1 + ViewsSaturation), clamped
func ViewsWeight(views float64) float64 {
	return logScale(views, ViewsSaturation)
}

// EngagementWeight returns the engagement rate clamped to [0, 1].
func EngagementWeight(rate float64) float64 {
	return clamp01(rate)
}

// RecencyWeight computes a linear freshness score in [0, 1].
// An item of age 0 (or a metrics snapshot taken before upload) scores 1.0,
// falling to 0 at RecencyWindow.
// Formula: 1 - (age / RecencyWindow) clamped to [0, 1]
func RecencyWeight(age time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	return clamp01(1.0 - float64(age)/float64(RecencyWindow))
}

// QualityWeight averages retention and approval, each in [0, 1].
//
// Retention is averageViewDuration / item duration; approval is
// likes / (likes + dislikes). Either falls back to 0.5 without data.
func QualityWeight(m analytics.MetricRecord, durationSeconds float64) float64 {
	retention := neutralWeight
	if durationSeconds > 0 {
		retention = clamp01(m.AverageViewDuration / durationSeconds)
	}

	approval := neutralWeight
	if votes := m.Likes + m.Dislikes; votes > 0 {
		approval = clamp01(m.Likes / votes)
	}

	return (retention + approval) / 2
}

// TrendingWeight computes a log-scaled views-per-hour score in [0, 1].
// Ages under an hour count as one hour.
func TrendingWeight(views float64, age time.Duration) float64 {
	hours := max(age.Hours(), 1)
	return logScale(views/hours, TrendingVelocitySaturation)
}

// Components holds the individual score components of an item.
type Components struct {
	Views      float64
	Engagement float64
	Recency    float64
	Quality    float64
	Trending   float64
}

// ComputeComponents evaluates every component for an item and its metrics.
// Age is measured from upload to the metrics snapshot.
func ComputeComponents(item Item, m analytics.MetricRecord) Components {
	c := Components{
		Views:      ViewsWeight(m.Views),
		Engagement: EngagementWeight(m.EngagementRate),
		Quality:    QualityWeight(m, item.DurationSeconds),
	}
	// Without both instants the age is unknown and earns no time-based credit.
	if m.HasValidTimestamp() && !item.UploadedAt.IsZero() {
		age := m.Timestamp.Sub(item.UploadedAt)
		c.Recency = RecencyWeight(age)
		c.Trending = TrendingWeight(m.Views, age)
	}
	return c
}

// CompositeScore combines components with the given factors.
func CompositeScore(c Components, f Factors) float64 {
	return c.Views*f.Views +
		c.Engagement*f.Engagement +
		c.Recency*f.Recency +
		c.Quality*f.Quality +
		c.Trending*f.Trending
}
