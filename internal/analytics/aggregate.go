package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedGranularity is returned for a bucket size other than hour,
// day, week or month.
var ErrUnsupportedGranularity = errors.New("unsupported aggregation granularity")

// Granularity is the size of an aggregation bucket.
type Granularity string

// Supported granularities.
const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity converts a case-insensitive name into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGranularity, s)
}

// BucketStart truncates t to the start of its bucket, evaluated in t's own
// location. Weeks start on Sunday.
func BucketStart(t time.Time, g Granularity) (time.Time, error) {
	loc := t.Location()
	y, m, d := t.Date()
	switch g {
	case GranularityHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc), nil
	case GranularityDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case GranularityWeek:
		return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc), nil
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, string(g))
}

// AggregatedMetrics sums one item's records within one bucket.
type AggregatedMetrics struct {
	Period                time.Time `json:"period"`
	ItemID                string    `json:"videoId"`
	TotalViews            float64   `json:"totalViews"`
	TotalLikes            float64   `json:"totalLikes"`
	TotalComments         float64   `json:"totalComments"`
	TotalShares           float64   `json:"totalShares"`
	TotalWatchTime        float64   `json:"totalWatchTime"`
	AverageEngagementRate float64   `json:"averageEngagementRate"`
	Samples               int       `json:"samples"`
}

// MergePolicy combines the running engagement rate of a bucket, built from
// samples records, with the rate of the next record.
type MergePolicy func(current float64, samples int, next float64) float64

// PairwiseMean halves the sum of the running and the next rate, so earlier
// records lose weight geometrically. It is the default policy.
var PairwiseMean MergePolicy = func(current float64, _ int, next float64) float64 {
	return (current + next) / 2
}

// CountWeightedMean gives every merged record equal weight.
var CountWeightedMean MergePolicy = func(current float64, samples int, next float64) float64 {
	return (current*float64(samples) + next) / float64(samples+1)
}

// Aggregator groups records by item and time bucket.
type Aggregator struct {
	merge MergePolicy
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithMergePolicy overrides the engagement rate merge policy.
func WithMergePolicy(p MergePolicy) AggregatorOption {
	return func(a *Aggregator) {
		if p != nil {
			a.merge = p
		}
	}
}

// NewAggregator creates an Aggregator using PairwiseMean unless overridden.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{merge: PairwiseMean}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type bucketKey struct {
	itemID string
	period int64 // unix seconds
}

// Aggregate sums records sharing an item and bucket. Output follows the
// order in which each (item, bucket) pair was first seen.
func (a *Aggregator) Aggregate(records []MetricRecord, g Granularity) ([]AggregatedMetrics, error) {
	g, err := ParseGranularity(string(g))
	if err != nil {
		return nil, err
	}

	out := make([]AggregatedMetrics, 0)
	index := make(map[bucketKey]int)

	for _, r := range records {
		period, err := BucketStart(r.Timestamp, g)
		if err != nil {
			return nil, err
		}
		key := bucketKey{itemID: r.ItemID, period: period.Unix()}

		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, AggregatedMetrics{
				Period:                period,
				ItemID:                r.ItemID,
				TotalViews:            r.Views,
				TotalLikes:            r.Likes,
				TotalComments:         r.Comments,
				TotalShares:           r.Shares,
				TotalWatchTime:        r.WatchTime,
				AverageEngagementRate: r.EngagementRate,
				Samples:               1,
			})
			continue
		}

		agg := &out[i]
		agg.TotalViews += r.Views
		agg.TotalLikes += r.Likes
		agg.TotalComments += r.Comments
		agg.TotalShares += r.Shares
		agg.TotalWatchTime += r.WatchTime
		agg.AverageEngagementRate = a.merge(agg.AverageEngagementRate, agg.Samples, r.EngagementRate)
		agg.Samples++
	}
	return out, nil
}

// Aggregate groups records with the default PairwiseMean policy.
func Aggregate(records []MetricRecord, g Granularity) ([]AggregatedMetrics, error) {
	return NewAggregator().Aggregate(records, g)
}
