package ranking

import (
	"errors"
	"fmt"
	"math"
)

// FactorSumTolerance is how far the factor sum may drift from 1.0.
const FactorSumTolerance = 0.001

var (
	// ErrFactorSumMismatch is returned when factors do not sum to 1.0.
	ErrFactorSumMismatch = errors.New("ranking factors must sum to 1.0")
	// ErrFactorOutOfRange is returned when a factor is outside [0, 1].
	ErrFactorOutOfRange = errors.New("all ranking factors must be between 0 and 1")
)

// Factors weights the score components. Accepted factors are each in
// [0, 1] and sum to 1.0 within FactorSumTolerance.
type Factors struct {
	Views      float64 `json:"viewsWeight"`
	Engagement float64 `json:"engagementWeight"`
	Recency    float64 `json:"recencyWeight"`
	Quality    float64 `json:"qualityWeight"`
	Trending   float64 `json:"trendingWeight"`
}

// DefaultFactors returns the default weighting.
//
// Formula: score = (views * 0.4) + (engagement * 0.3) + (recency * 0.1) + (quality * 0.1) + (trending * 0.1)
func DefaultFactors() Factors {
	return Factors{
		Views:      0.4,
		Engagement: 0.3,
		Recency:    0.1,
		Quality:    0.1,
		Trending:   0.1,
	}
}

// Sum returns the total of all weights.
func (f Factors) Sum() float64 {
	return f.Views + f.Engagement + f.Recency + f.Quality + f.Trending
}

func (f Factors) named() []struct {
	name  string
	value float64
} {
	return []struct {
		name  string
		value float64
	}{
		{"viewsWeight", f.Views},
		{"engagementWeight", f.Engagement},
		{"recencyWeight", f.Recency},
		{"qualityWeight", f.Quality},
		{"trendingWeight", f.Trending},
	}
}

// ValidateFactors checks the sum first, then each weight's range.
// The returned error wraps ErrFactorSumMismatch or ErrFactorOutOfRange.
func ValidateFactors(f Factors) error {
	sum := f.Sum()
	if math.IsNaN(sum) || math.Abs(sum-1.0) > FactorSumTolerance {
		return fmt.Errorf("%w: got %.4f", ErrFactorSumMismatch, sum)
	}
	for _, w := range f.named() {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("%w: %s is %.4f", ErrFactorOutOfRange, w.name, w.value)
		}
	}
	return nil
}
