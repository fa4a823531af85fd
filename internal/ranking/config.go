package ranking

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
)

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Factors Factors `json:"factors"` // Factor overrides
}

// LoadCalibration loads ranking factors from a JSON calibration file.
// If the file can't be read or parsed, returns default factors with an error.
// Partial configurations are merged with defaults, so an override file only
// needs the weights it changes. The merged factors are not validated here;
// pass them through Service.AcceptFactors.
func LoadCalibration(filePath string) (*Factors, error) {
	defaults := DefaultFactors()
	if filePath == "" {
		return &defaults, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return &defaults, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return &defaults, fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(&defaults, &config.Factors)
	logCalibrationOverrides(&defaults, merged)

	return merged, nil
}

// MergeCalibration merges override factors into base factors.
// Only non-zero override values are applied.
func MergeCalibration(base *Factors, override *Factors) *Factors {
	if base == nil {
		defaults := DefaultFactors()
		base = &defaults
	}

	result := *base
	if override == nil {
		return &result
	}

	if override.Views != 0 {
		result.Views = override.Views
	}
	if override.Engagement != 0 {
		result.Engagement = override.Engagement
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.Quality != 0 {
		result.Quality = override.Quality
	}
	if override.Trending != 0 {
		result.Trending = override.Trending
	}

	return &result
}

// logCalibrationOverrides logs which factors were overridden from defaults.
func logCalibrationOverrides(defaults *Factors, loaded *Factors) {
	var overrides []string

	base := defaults.named()
	for i, w := range loaded.named() {
		if w.value != base[i].value {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f",
				w.name, base[i].value, w.value))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
