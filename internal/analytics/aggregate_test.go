package analytics

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestBucketStart(t *testing.T) {
	// Wednesday
	ts := time.Date(2024, 1, 17, 15, 42, 13, 500, time.UTC)

	tests := []struct {
		granularity Granularity
		expected    time.Time
	}{
		{GranularityHour, time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC)},
		{GranularityDay, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)},
		{GranularityWeek, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)},
		{GranularityMonth, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			got, err := BucketStart(ts, tt.granularity)
			if err != nil {
				t.Fatalf("BucketStart() error = %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("BucketStart() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBucketStart_UsesRecordLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 2024-02-01 03:00 UTC is still January 31st at UTC-5
	ts := time.Date(2024, 1, 31, 22, 0, 0, 0, loc)

	got, err := BucketStart(ts, GranularityMonth)
	if err != nil {
		t.Fatalf("BucketStart() error = %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("BucketStart() = %v, want %v", got, want)
	}
}

func TestBucketStart_WeekCrossesMonth(t *testing.T) {
	// Tuesday 2024-10-01, week starts Sunday 2024-09-29
	ts := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	got, err := BucketStart(ts, GranularityWeek)
	if err != nil {
		t.Fatalf("BucketStart() error = %v", err)
	}
	want := time.Date(2024, 9, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("BucketStart() = %v, want %v", got, want)
	}
}

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"hour", "Day", " WEEK ", "month"} {
		if _, err := ParseGranularity(s); err != nil {
			t.Errorf("ParseGranularity(%q) error = %v", s, err)
		}
	}
	if _, err := ParseGranularity("year"); !errors.Is(err, ErrUnsupportedGranularity) {
		t.Errorf("expected ErrUnsupportedGranularity, got %v", err)
	}
}

func TestAggregate_SameDay(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	records := []MetricRecord{
		{ItemID: "v1", Timestamp: day.Add(9 * time.Hour), Views: 1000, Likes: 100, Comments: 10, Shares: 5, WatchTime: 3000, EngagementRate: 0.2},
		{ItemID: "v1", Timestamp: day.Add(18 * time.Hour), Views: 500, Likes: 20, Comments: 4, Shares: 1, WatchTime: 1000, EngagementRate: 0.1},
	}

	out, err := Aggregate(records, GranularityDay)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}

	agg := out[0]
	if agg.TotalViews != 1500 {
		t.Errorf("TotalViews = %v, want 1500", agg.TotalViews)
	}
	if agg.TotalLikes != 120 || agg.TotalComments != 14 || agg.TotalShares != 6 || agg.TotalWatchTime != 4000 {
		t.Errorf("unexpected totals: %+v", agg)
	}
	if math.Abs(agg.AverageEngagementRate-0.15) > 1e-9 {
		t.Errorf("AverageEngagementRate = %v, want 0.15", agg.AverageEngagementRate)
	}
	if !agg.Period.Equal(day) {
		t.Errorf("Period = %v, want %v", agg.Period, day)
	}
	if agg.Samples != 2 {
		t.Errorf("Samples = %d, want 2", agg.Samples)
	}
}

func TestAggregate_PairwiseMeanIsNotCountWeighted(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []MetricRecord{
		{ItemID: "v1", Timestamp: ts, EngagementRate: 0.0},
		{ItemID: "v1", Timestamp: ts, EngagementRate: 0.0},
		{ItemID: "v1", Timestamp: ts, EngagementRate: 0.6},
	}

	pairwise, err := Aggregate(records, GranularityHour)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if math.Abs(pairwise[0].AverageEngagementRate-0.3) > 1e-9 {
		t.Errorf("pairwise rate = %v, want 0.3", pairwise[0].AverageEngagementRate)
	}

	weighted, err := NewAggregator(WithMergePolicy(CountWeightedMean)).Aggregate(records, GranularityHour)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if math.Abs(weighted[0].AverageEngagementRate-0.2) > 1e-9 {
		t.Errorf("count weighted rate = %v, want 0.2", weighted[0].AverageEngagementRate)
	}
}

func TestAggregate_FirstSeenOrder(t *testing.T) {
	base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	records := []MetricRecord{
		{ItemID: "b", Timestamp: base, Views: 1},
		{ItemID: "a", Timestamp: base, Views: 1},
		{ItemID: "b", Timestamp: base.Add(48 * time.Hour), Views: 1},
		{ItemID: "a", Timestamp: base.Add(time.Hour), Views: 1},
	}

	out, err := Aggregate(records, GranularityDay)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	want := []struct {
		id  string
		day int
	}{{"b", 15}, {"a", 15}, {"b", 17}}
	if len(out) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(out))
	}
	for i, w := range want {
		if out[i].ItemID != w.id || out[i].Period.Day() != w.day {
			t.Errorf("bucket %d = (%s, %d), want (%s, %d)", i, out[i].ItemID, out[i].Period.Day(), w.id, w.day)
		}
	}
	if out[1].TotalViews != 2 {
		t.Errorf("expected a's bucket to hold 2 views, got %v", out[1].TotalViews)
	}
}

func TestAggregate_Empty(t *testing.T) {
	out, err := Aggregate(nil, GranularityWeek)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil output, got %v", out)
	}
}

func TestAggregate_UnsupportedGranularity(t *testing.T) {
	_, err := Aggregate([]MetricRecord{{ItemID: "v1"}}, Granularity("fortnight"))
	if !errors.Is(err, ErrUnsupportedGranularity) {
		t.Errorf("expected ErrUnsupportedGranularity, got %v", err)
	}
}

func TestAggregate_GranularityIsCaseInsensitive(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	records := []MetricRecord{
		{ItemID: "v1", Timestamp: day.Add(9 * time.Hour), Views: 1000},
		{ItemID: "v1", Timestamp: day.Add(18 * time.Hour), Views: 500},
	}

	for _, name := range []string{"Day", " DAY ", "day"} {
		t.Run(name, func(t *testing.T) {
			out, err := Aggregate(records, Granularity(name))
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if len(out) != 1 {
				t.Fatalf("expected 1 bucket, got %d", len(out))
			}
			if !out[0].Period.Equal(day) || out[0].TotalViews != 1500 {
				t.Errorf("got %+v, want one day bucket at %v with 1500 views", out[0], day)
			}
		})
	}
}
