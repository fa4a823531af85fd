// Package config provides configuration loading and validation for rankiro.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/rankiro/internal/analytics"
	"github.com/onnwee/rankiro/internal/logging"
	"github.com/onnwee/rankiro/internal/report"
	"github.com/onnwee/rankiro/internal/store"
	"github.com/onnwee/rankiro/internal/tracing"
)

// Config holds all configuration values for rankiro.
type Config struct {
	Env      string `koanf:"env"`
	LogLevel string `koanf:"log_level"`

	// Ranking store
	StoreBackend string `koanf:"store_backend"` // memory, postgres or redis
	DatabaseURL  string `koanf:"database_url"`
	RedisURL     string `koanf:"redis_url"`

	// Ranking
	RankingCalibrationPath string        `koanf:"ranking_calibration_path"`
	RecomputeInterval      time.Duration `koanf:"recompute_interval"`
	RecomputeTimeout       time.Duration `koanf:"recompute_timeout"`
	ScoreWorkers           int           `koanf:"score_workers"` // 0 means GOMAXPROCS

	// Analytics
	AggregationGranularity string `koanf:"aggregation_granularity"`

	// Metrics are written to a node-exporter textfile when set.
	MetricsTextfile string `koanf:"metrics_textfile"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`

	// Report export (S3-compatible object storage)
	ReportBucket          string `koanf:"report_bucket"`
	ReportEndpoint        string `koanf:"report_endpoint"`
	ReportRegion          string `koanf:"report_region"`
	ReportAccessKeyID     string `koanf:"report_access_key_id"`
	ReportSecretAccessKey string `koanf:"report_secret_access_key"`
}

// Configuration validation errors.
var (
	ErrInvalidStoreBackend      = errors.New("STORE_BACKEND must be memory, postgres or redis")
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required for the postgres store")
	ErrMissingRedisURL          = errors.New("REDIS_URL is required for the redis store")
	ErrInvalidLogLevel          = errors.New("LOG_LEVEL must be debug, info, warn or error")
	ErrInvalidGranularity       = errors.New("AGGREGATION_GRANULARITY must be hour, day, week or month")
	ErrInvalidRecomputeInterval = errors.New("RECOMPUTE_INTERVAL must be positive")
	ErrInvalidRecomputeTimeout  = errors.New("RECOMPUTE_TIMEOUT must be positive")
	ErrInvalidScoreWorkers      = errors.New("SCORE_WORKERS must not be negative")
	ErrInvalidInteger           = errors.New("must be a valid integer")
	ErrInvalidDuration          = errors.New("must be a valid duration")
	ErrInvalidFloat             = errors.New("must be a valid float")
	ErrMissingReportBucket      = errors.New("REPORT_BUCKET is required")
	ErrMissingReportEndpoint    = errors.New("REPORT_ENDPOINT is required")
	ErrMissingReportAccessKey   = errors.New("REPORT_ACCESS_KEY_ID is required")
	ErrMissingReportSecretKey   = errors.New("REPORT_SECRET_ACCESS_KEY is required")
)

// Default values for non-secret configuration.
const (
	DefaultEnv                    = "development"
	DefaultStoreBackend           = string(store.BackendMemory)
	DefaultRecomputeInterval      = 30 * time.Second
	DefaultRecomputeTimeout       = 5 * time.Minute
	DefaultAggregationGranularity = string(analytics.GranularityDay)
	DefaultTracingExporter        = tracing.ExporterOTLPHTTP
	DefaultTracingSamplingRate    = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	workers, err := getEnvIntOrDefault("SCORE_WORKERS", k.Int("score_workers"), 0)
	collect(err)
	interval, err := getEnvDurationOrDefault("RECOMPUTE_INTERVAL", k.Duration("recompute_interval"), DefaultRecomputeInterval)
	collect(err)
	timeout, err := getEnvDurationOrDefault("RECOMPUTE_TIMEOUT", k.Duration("recompute_timeout"), DefaultRecomputeTimeout)
	collect(err)
	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k, "tracing_sampling_rate", DefaultTracingSamplingRate)
	collect(err)

	cfg := &Config{
		Env:                    getEnvOrDefaultMulti([]string{"RANKIRO_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		LogLevel:               getEnvOrKoanf("LOG_LEVEL", k, "log_level"),
		StoreBackend:           getEnvOrDefault("STORE_BACKEND", k.String("store_backend"), DefaultStoreBackend),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		RecomputeInterval:      interval,
		RecomputeTimeout:       timeout,
		ScoreWorkers:           workers,
		AggregationGranularity: getEnvOrDefault("AGGREGATION_GRANULARITY", k.String("aggregation_granularity"), DefaultAggregationGranularity),
		MetricsTextfile:        getEnvOrKoanf("METRICS_TEXTFILE", k, "metrics_textfile"),
		TracingEnabled:         getEnvBool("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:        getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate:    samplingRate,
		TracingInsecure:        getEnvBool("TRACING_INSECURE", k, "tracing_insecure"),
		ReportBucket:           getEnvOrKoanf("REPORT_BUCKET", k, "report_bucket"),
		ReportEndpoint:         getEnvOrKoanf("REPORT_ENDPOINT", k, "report_endpoint"),
		ReportRegion:           getEnvOrKoanf("REPORT_REGION", k, "report_region"),
		ReportAccessKeyID:      getEnvOrKoanf("REPORT_ACCESS_KEY_ID", k, "report_access_key_id"),
		ReportSecretAccessKey:  getEnvOrKoanf("REPORT_SECRET_ACCESS_KEY", k, "report_secret_access_key"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s %w", envKey, ErrInvalidInteger)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvDurationOrDefault returns the environment variable as a duration if set,
// otherwise the koanf value, or default. Durations use time.ParseDuration syntax.
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s %w", envKey, ErrInvalidDuration)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set,
// otherwise the koanf value when present, or default. An explicit 0 in the
// file is honoured.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s %w", envKey, ErrInvalidFloat)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvBool reads a boolean flag. The env var, when it holds a recognised
// value, takes precedence over the file.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string) bool {
	enabled := k.Bool(koanfKey)
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		enabled = true
	case "false", "0", "no", "off":
		enabled = false
	}
	return enabled
}

// Validate checks configuration values.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	switch store.Backend(c.StoreBackend) {
	case store.BackendMemory:
	case store.BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case store.BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	default:
		errs = append(errs, ErrInvalidStoreBackend)
	}

	if _, _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ErrInvalidLogLevel)
	}
	if _, err := analytics.ParseGranularity(c.AggregationGranularity); err != nil {
		errs = append(errs, ErrInvalidGranularity)
	}
	if c.RecomputeInterval <= 0 {
		errs = append(errs, ErrInvalidRecomputeInterval)
	}
	if c.RecomputeTimeout <= 0 {
		errs = append(errs, ErrInvalidRecomputeTimeout)
	}
	if c.ScoreWorkers < 0 {
		errs = append(errs, ErrInvalidScoreWorkers)
	}

	if err := c.Tracing().Validate(); err != nil {
		errs = append(errs, err)
	}

	// Report export is optional. Only validate fields if any report value is set.
	if c.ReportEnabled() {
		if c.ReportBucket == "" {
			errs = append(errs, ErrMissingReportBucket)
		}
		if c.ReportEndpoint == "" {
			errs = append(errs, ErrMissingReportEndpoint)
		}
		if c.ReportAccessKeyID == "" {
			errs = append(errs, ErrMissingReportAccessKey)
		}
		if c.ReportSecretAccessKey == "" {
			errs = append(errs, ErrMissingReportSecretKey)
		}
	}

	return errs
}

// ReportEnabled reports whether any report export setting is present.
func (c *Config) ReportEnabled() bool {
	return c.ReportBucket != "" || c.ReportEndpoint != "" || c.ReportAccessKeyID != "" || c.ReportSecretAccessKey != ""
}

// Tracing returns the tracing provider configuration.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:  tracing.DefaultServiceName,
		Enabled:      c.TracingEnabled,
		Environment:  c.Env,
		ExporterType: c.TracingExporter,
		OTLPEndpoint: c.TracingEndpoint,
		SamplingRate: c.TracingSamplingRate,
		InsecureMode: c.TracingInsecure,
	}
}

// Report returns the report exporter configuration.
func (c *Config) Report() report.Config {
	return report.Config{
		BucketName:      c.ReportBucket,
		AccessKeyID:     c.ReportAccessKeyID,
		SecretAccessKey: c.ReportSecretAccessKey,
		Endpoint:        c.ReportEndpoint,
		Region:          c.ReportRegion,
	}
}

// Store returns the ranking store options.
func (c *Config) Store() store.Options {
	return store.Options{
		Backend:     store.Backend(c.StoreBackend),
		DatabaseURL: c.DatabaseURL,
		RedisURL:    c.RedisURL,
	}
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"env":                      c.Env,
		"log_level":                c.LogLevel,
		"store_backend":            c.StoreBackend,
		"database_url":             maskURLPassword(c.DatabaseURL),
		"redis_url":                maskURLPassword(c.RedisURL),
		"ranking_calibration_path": c.RankingCalibrationPath,
		"recompute_interval":       c.RecomputeInterval.String(),
		"recompute_timeout":        c.RecomputeTimeout.String(),
		"score_workers":            strconv.Itoa(c.ScoreWorkers),
		"aggregation_granularity":  c.AggregationGranularity,
		"metrics_textfile":         c.MetricsTextfile,
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":         c.TracingExporter,
		"tracing_endpoint":         c.TracingEndpoint,
		"tracing_sampling_rate":    strconv.FormatFloat(c.TracingSamplingRate, 'f', -1, 64),
		"report_bucket":            c.ReportBucket,
		"report_endpoint":          c.ReportEndpoint,
		"report_access_key_id":     maskSecret(c.ReportAccessKeyID),
		"report_secret_access_key": maskSecret(c.ReportSecretAccessKey),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskURLPassword masks the password in a connection URL
// (postgres://, postgresql://, redis://, rediss://).
func maskURLPassword(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
