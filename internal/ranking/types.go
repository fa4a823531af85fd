package ranking

import "time"

// Unranked is the rank of a score that has not been through a batch pass.
const Unranked = 0

// Item is a catalog entry that can be ranked.
type Item struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	UploadedAt      time.Time `json:"uploadDate"`
	CreatorID       string    `json:"creatorId"`
	DurationSeconds float64   `json:"duration"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	Tags            []string  `json:"tags"`
	Category        string    `json:"category"`
}

// Score is the computed ranking of one item.
type Score struct {
	ItemID     string    `json:"videoId"`
	Score      float64   `json:"score"`
	Rank       int       `json:"rank"`
	Category   string    `json:"category"`
	ComputedAt time.Time `json:"timestamp"`
	Factors    Factors   `json:"factors"`
}

// SkippedItem is an item left out of a batch.
type SkippedItem struct {
	ItemID string `json:"videoId"`
	Reason string `json:"reason"`
}

// Skip reasons.
const (
	SkipReasonNoMetrics = "no metrics"
)

// BatchResult is the outcome of ScoreBatch.
type BatchResult struct {
	// Scores are sorted by score descending with ranks 1..N.
	Scores []Score
	// Skipped lists items that could not be scored, in input order.
	Skipped []SkippedItem
}

// DateRange bounds a history query. A nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}
