// Package analytics turns raw engagement records into validated, derived
// and time-bucketed metric records ready for scoring.
package analytics

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ErrNotARecord is returned by ParseRecord when the input is not a
// key/value record.
var ErrNotARecord = errors.New("raw metrics input is not a record")

// Raw record keys.
const (
	FieldItemID              = "videoId"
	FieldItemIDAlias         = "itemId"
	FieldTimestamp           = "timestamp"
	FieldViews               = "views"
	FieldLikes               = "likes"
	FieldDislikes            = "dislikes"
	FieldComments            = "comments"
	FieldShares              = "shares"
	FieldWatchTime           = "watchTime"
	FieldAverageViewDuration = "averageViewDuration"
	FieldEngagementRate      = "engagementRate"
)

// MetricRecord is one engagement snapshot for an item.
// A zero Timestamp marks an instant that could not be parsed.
type MetricRecord struct {
	ItemID              string    `json:"videoId"`
	Timestamp           time.Time `json:"timestamp"`
	Views               float64   `json:"views"`
	Likes               float64   `json:"likes"`
	Dislikes            float64   `json:"dislikes"`
	Comments            float64   `json:"comments"`
	Shares              float64   `json:"shares"`
	WatchTime           float64   `json:"watchTime"`           // seconds
	AverageViewDuration float64   `json:"averageViewDuration"` // seconds
	EngagementRate      float64   `json:"engagementRate"`      // 0..1
}

// HasValidTimestamp reports whether the record carries a parsed instant.
func (r MetricRecord) HasValidTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// Rejection describes a raw input that could not be turned into a record.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ProcessResult holds the records built from a batch of raw inputs and the
// inputs that were rejected.
type ProcessResult struct {
	Records  []MetricRecord
	Rejected []Rejection
}

// ParseRecord builds a MetricRecord from an untyped key/value record.
// Absent or non-numeric counts default to 0 and an unparseable timestamp
// yields the zero time. Only non-record inputs are rejected.
func ParseRecord(raw any) (MetricRecord, error) {
	fields, ok := asFields(raw)
	if !ok {
		return MetricRecord{}, ErrNotARecord
	}

	id := fields[FieldItemID]
	if id == nil {
		id = fields[FieldItemIDAlias]
	}

	return MetricRecord{
		ItemID:              coerceString(id),
		Timestamp:           coerceTime(fields[FieldTimestamp]),
		Views:               coerceNumber(fields[FieldViews]),
		Likes:               coerceNumber(fields[FieldLikes]),
		Dislikes:            coerceNumber(fields[FieldDislikes]),
		Comments:            coerceNumber(fields[FieldComments]),
		Shares:              coerceNumber(fields[FieldShares]),
		WatchTime:           coerceNumber(fields[FieldWatchTime]),
		AverageViewDuration: coerceNumber(fields[FieldAverageViewDuration]),
		EngagementRate:      coerceNumber(fields[FieldEngagementRate]),
	}, nil
}

// ProcessMetrics parses each raw input independently. A rejected input is
// recorded in the result and never aborts the batch.
func ProcessMetrics(raws []any) ProcessResult {
	result := ProcessResult{Records: make([]MetricRecord, 0, len(raws))}
	for i, raw := range raws {
		record, err := ParseRecord(raw)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result
}

// asFields accepts JSON-style and CBOR-style maps.
func asFields(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		if m == nil {
			return nil, false
		}
		return m, true
	case map[any]any:
		if m == nil {
			return nil, false
		}
		fields := make(map[string]any, len(m))
		for k, v := range m {
			if key, ok := k.(string); ok {
				fields[key] = v
			}
		}
		return fields, true
	default:
		return nil, false
	}
}

func coerceString(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

func coerceNumber(v any) float64 {
	if v == nil {
		return 0
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// maxEpochMillis bounds epoch-millisecond timestamps to +/-100,000,000 days
// around 1970.
const maxEpochMillis = 8.64e15

// coerceTime accepts time values, date strings and Unix epoch milliseconds.
// Out-of-range milliseconds yield the zero time.
func coerceTime(v any) time.Time {
	switch t := v.(type) {
	case nil, bool:
		return time.Time{}
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case string:
		parsed, err := cast.ToTimeE(strings.TrimSpace(t))
		if err != nil {
			return time.Time{}
		}
		return parsed
	}

	ms, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
