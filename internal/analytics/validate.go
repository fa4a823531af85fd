package analytics

import "fmt"

// ValidationIssue describes one problem found on a record field.
type ValidationIssue struct {
	ItemID  string `json:"videoId"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// ValidationError makes a record batch invalid.
type ValidationError = ValidationIssue

// ValidationWarning flags an unusual but acceptable value.
type ValidationWarning = ValidationIssue

// ValidationResult is the outcome of validating a batch of records.
type ValidationResult struct {
	IsValid  bool                `json:"isValid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
}

// Validate checks every record and accumulates all issues found.
// The result is valid only when no errors were recorded; warnings are
// advisory.
func Validate(records []MetricRecord) ValidationResult {
	var result ValidationResult
	for _, r := range records {
		errs, warns := checkRecord(r)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}
	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateRecord validates a single record.
func ValidateRecord(r MetricRecord) ValidationResult {
	return Validate([]MetricRecord{r})
}

func checkRecord(r MetricRecord) (errs []ValidationError, warns []ValidationWarning) {
	if r.ItemID == "" {
		errs = append(errs, ValidationError{ItemID: r.ItemID, Field: FieldItemID, Message: "video ID is required", Value: r.ItemID})
	}
	if !r.HasValidTimestamp() {
		errs = append(errs, ValidationError{ItemID: r.ItemID, Field: FieldTimestamp, Message: "timestamp is required", Value: r.Timestamp})
	}

	counts := []struct {
		field string
		value float64
	}{
		{FieldViews, r.Views},
		{FieldLikes, r.Likes},
		{FieldDislikes, r.Dislikes},
		{FieldComments, r.Comments},
		{FieldShares, r.Shares},
		{FieldWatchTime, r.WatchTime},
		{FieldAverageViewDuration, r.AverageViewDuration},
	}
	for _, c := range counts {
		if c.value < 0 {
			errs = append(errs, ValidationError{
				ItemID:  r.ItemID,
				Field:   c.field,
				Message: fmt.Sprintf("%s cannot be negative", c.field),
				Value:   c.value,
			})
		}
	}

	if r.EngagementRate < 0 || r.EngagementRate > 1 {
		errs = append(errs, ValidationError{ItemID: r.ItemID, Field: FieldEngagementRate, Message: "engagement rate must be between 0 and 1", Value: r.EngagementRate})
	}

	if r.Likes > r.Views {
		warns = append(warns, ValidationWarning{ItemID: r.ItemID, Field: FieldLikes, Message: "likes exceed views, which is unusual", Value: r.Likes})
	}
	if r.AverageViewDuration > r.WatchTime && r.Views > 1 {
		warns = append(warns, ValidationWarning{ItemID: r.ItemID, Field: FieldAverageViewDuration, Message: "average view duration exceeds total watch time", Value: r.AverageViewDuration})
	}
	return errs, warns
}
