package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/rankiro/internal/analytics"
)

func TestInMemoryStore_LatestPerItem(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := []Score{
		{ItemID: "a", Score: 0.9, Rank: 1, Category: "music", ComputedAt: t0},
		{ItemID: "b", Score: 0.5, Rank: 2, Category: "music", ComputedAt: t0},
		{ItemID: "c", Score: 0.7, Rank: 1, Category: "news", ComputedAt: t0},
	}
	second := []Score{
		{ItemID: "b", Score: 0.95, Rank: 1, Category: "music", ComputedAt: t0.Add(time.Hour)},
		{ItemID: "a", Score: 0.4, Rank: 2, Category: "music", ComputedAt: t0.Add(time.Hour)},
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	music, err := store.ByCategory(ctx, "music", 10, 0)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}
	if len(music) != 2 || music[0].ItemID != "b" || music[1].ItemID != "a" {
		t.Errorf("unexpected music rankings: %+v", music)
	}

	none, err := store.ByCategory(ctx, "music", 10, 5)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(none))
	}

	top, err := store.TopRanked(ctx, 2)
	if err != nil {
		t.Fatalf("TopRanked() error = %v", err)
	}
	if len(top) != 2 || top[0].ItemID != "b" || top[1].ItemID != "c" {
		t.Errorf("unexpected top ranked: %+v", top)
	}

	history, err := store.History(ctx, "a", nil, nil)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Score != 0.9 || history[1].Score != 0.4 {
		t.Errorf("unexpected history: %+v", history)
	}

	end := t0.Add(30 * time.Minute)
	bounded, err := store.History(ctx, "a", nil, &end)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(bounded) != 1 || bounded[0].Score != 0.9 {
		t.Errorf("unexpected bounded history: %+v", bounded)
	}
}

func TestPage(t *testing.T) {
	scores := []Score{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}}

	tests := []struct {
		name          string
		limit, offset int
		expected      int
	}{
		{"no limit", 0, 0, 3},
		{"limit", 2, 0, 2},
		{"offset", 0, 1, 2},
		{"limit and offset", 1, 1, 1},
		{"offset past end", 2, 3, 0},
		{"negative offset", 2, -4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Page(scores, tt.limit, tt.offset); len(got) != tt.expected {
				t.Errorf("expected %d scores, got %d", tt.expected, len(got))
			}
		})
	}
}

func TestInMemoryDataSource(t *testing.T) {
	ds := NewInMemoryDataSource()
	ctx := context.Background()

	ds.AddItem(Item{ID: "v1", Category: "music"})
	ds.AddItem(Item{ID: "v2", Category: "music"})
	ds.AddItem(Item{ID: "v3", Category: "gaming"})
	ds.AddMetrics(
		analytics.MetricRecord{ItemID: "v1", Views: 1},
		analytics.MetricRecord{ItemID: "v3", Views: 3},
		analytics.MetricRecord{ItemID: "v1", Views: 2},
	)

	items, err := ds.ItemsByCategory(ctx, "music")
	if err != nil {
		t.Fatalf("ItemsByCategory() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != "v1" {
		t.Errorf("unexpected items: %+v", items)
	}

	records, err := ds.MetricsForItems(ctx, []string{"v1", "v2"})
	if err != nil {
		t.Fatalf("MetricsForItems() error = %v", err)
	}
	if len(records) != 2 || records[1].Views != 2 {
		t.Errorf("unexpected records: %+v", records)
	}

	if cats := ds.Categories(); len(cats) != 2 || cats[0] != "gaming" {
		t.Errorf("unexpected categories: %v", cats)
	}

	ds.Reset()
	if cats := ds.Categories(); len(cats) != 0 {
		t.Errorf("expected no categories after reset, got %v", cats)
	}
}
