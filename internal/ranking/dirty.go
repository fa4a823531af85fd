package ranking

import (
	"sort"
	"sync"
	"time"
)

// DirtyTracker tracks categories whose rankings need recomputation.
// Thread-safe.
type DirtyTracker struct {
	mu    sync.RWMutex
	dirty map[string]time.Time // category -> time marked dirty
}

// NewDirtyTracker creates a new dirty tracker.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		dirty: make(map[string]time.Time),
	}
}

// MarkDirty marks a category as needing recomputation.
// The first mark time is kept until the category is cleared.
func (d *DirtyTracker) MarkDirty(category string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dirty[category]; !ok {
		d.dirty[category] = time.Now()
	}
}

// ClearDirty removes a category from the dirty set.
func (d *DirtyTracker) ClearDirty(category string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.dirty, category)
}

// DirtyCategories returns the dirty categories, oldest mark first.
func (d *DirtyTracker) DirtyCategories() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	categories := make([]string, 0, len(d.dirty))
	for c := range d.dirty {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		ti, tj := d.dirty[categories[i]], d.dirty[categories[j]]
		if ti.Equal(tj) {
			return categories[i] < categories[j]
		}
		return ti.Before(tj)
	})
	return categories
}

// IsDirty checks if a category is marked as dirty.
func (d *DirtyTracker) IsDirty(category string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.dirty[category]
	return ok
}

// DirtyCount returns the number of dirty categories.
func (d *DirtyTracker) DirtyCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.dirty)
}
