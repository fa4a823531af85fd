package ranking

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/onnwee/rankiro/internal/analytics"
)

// Store persists ranking scores. Reads return the latest score per item.
// A limit <= 0 means no limit.
type Store interface {
	// Save persists a batch of scores.
	Save(ctx context.Context, scores []Score) error
	// ByCategory returns the latest scores in a category, best first.
	ByCategory(ctx context.Context, category string, limit, offset int) ([]Score, error)
	// History returns every saved score of an item within the range,
	// oldest first. Nil bounds are open.
	History(ctx context.Context, itemID string, start, end *time.Time) ([]Score, error)
	// TopRanked returns the best latest scores across all categories.
	TopRanked(ctx context.Context, limit int) ([]Score, error)
}

// CompareScores orders scores best first: higher score, then lower rank,
// then item id.
func CompareScores(a, b Score) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
		return c
	}
	return cmp.Compare(a.ItemID, b.ItemID)
}

// Page applies offset and limit to scores. A limit <= 0 means no limit.
func Page(scores []Score, limit, offset int) []Score {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(scores) {
		return []Score{}
	}
	scores = scores[offset:]
	if limit > 0 && limit < len(scores) {
		scores = scores[:limit]
	}
	return scores
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu      sync.RWMutex
	latest  map[string]Score   // itemID -> latest score
	history map[string][]Score // itemID -> scores in save order
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		latest:  make(map[string]Score),
		history: make(map[string][]Score),
	}
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, scores []Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, score := range scores {
		s.latest[score.ItemID] = score
		s.history[score.ItemID] = append(s.history[score.ItemID], score)
	}
	return nil
}

// ByCategory implements Store.
func (s *InMemoryStore) ByCategory(_ context.Context, category string, limit, offset int) ([]Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Score
	for _, score := range s.latest {
		if score.Category == category {
			result = append(result, score)
		}
	}
	slices.SortFunc(result, CompareScores)
	return Page(result, limit, offset), nil
}

// History implements Store.
func (s *InMemoryStore) History(_ context.Context, itemID string, start, end *time.Time) ([]Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Score, 0, len(s.history[itemID]))
	for _, score := range s.history[itemID] {
		if start != nil && score.ComputedAt.Before(*start) {
			continue
		}
		if end != nil && score.ComputedAt.After(*end) {
			continue
		}
		result = append(result, score)
	}
	slices.SortStableFunc(result, func(a, b Score) int {
		return a.ComputedAt.Compare(b.ComputedAt)
	})
	return result, nil
}

// TopRanked implements Store.
func (s *InMemoryStore) TopRanked(_ context.Context, limit int) ([]Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Score, 0, len(s.latest))
	for _, score := range s.latest {
		result = append(result, score)
	}
	slices.SortFunc(result, CompareScores)
	return Page(result, limit, 0), nil
}

// InMemoryDataSource is an in-memory implementation of DataSource.
type InMemoryDataSource struct {
	mu      sync.RWMutex
	items   map[string][]Item                   // category -> items
	metrics map[string][]analytics.MetricRecord // itemID -> records
}

// NewInMemoryDataSource creates a new in-memory data source.
func NewInMemoryDataSource() *InMemoryDataSource {
	return &InMemoryDataSource{
		items:   make(map[string][]Item),
		metrics: make(map[string][]analytics.MetricRecord),
	}
}

// ItemsByCategory returns the items of a category in insertion order.
func (s *InMemoryDataSource) ItemsByCategory(_ context.Context, category string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Return a copy to avoid external modification
	return slices.Clone(s.items[category]), nil
}

// MetricsForItems returns all records of the given items.
func (s *InMemoryDataSource) MetricsForItems(_ context.Context, itemIDs []string) ([]analytics.MetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []analytics.MetricRecord
	for _, id := range itemIDs {
		result = append(result, s.metrics[id]...)
	}
	return result, nil
}

// Categories returns every category with at least one item.
func (s *InMemoryDataSource) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	categories := make([]string, 0, len(s.items))
	for c := range s.items {
		categories = append(categories, c)
	}
	slices.Sort(categories)
	return categories
}

// AddItem adds an item to the data source.
func (s *InMemoryDataSource) AddItem(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Category] = append(s.items[item.Category], item)
}

// AddMetrics adds metric records to the data source.
func (s *InMemoryDataSource) AddMetrics(records ...analytics.MetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.metrics[r.ItemID] = append(s.metrics[r.ItemID], r)
	}
}

// Reset removes all items and metrics.
func (s *InMemoryDataSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string][]Item)
	s.metrics = make(map[string][]analytics.MetricRecord)
}
