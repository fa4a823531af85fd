// Package report exports aggregated metrics reports to S3-compatible object storage.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/onnwee/rankiro/internal/analytics"
	"github.com/onnwee/rankiro/internal/tracing"
)

// ContentTypeJSON is the content type of exported reports.
const ContentTypeJSON = "application/json"

// DefaultRegion is used when no region is configured.
const DefaultRegion = "auto"

// Configuration errors
var (
	ErrMissingBucket    = errors.New("bucket name is required")
	ErrMissingAccessKey = errors.New("access key ID is required")
	ErrMissingSecretKey = errors.New("secret access key is required")
	ErrMissingEndpoint  = errors.New("endpoint is required")
)

// ObjectPutter is the subset of the S3 client used by Exporter.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Document is the JSON body of an exported report.
type Document struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	Granularity analytics.Granularity         `json:"granularity"`
	Buckets     []analytics.AggregatedMetrics `json:"buckets"`
}

// Config holds configuration for the exporter.
type Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string // Default: auto
	Logger          *slog.Logger
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error
	if c.BucketName == "" {
		errs = append(errs, ErrMissingBucket)
	}
	if c.AccessKeyID == "" {
		errs = append(errs, ErrMissingAccessKey)
	}
	if c.SecretAccessKey == "" {
		errs = append(errs, ErrMissingSecretKey)
	}
	if c.Endpoint == "" {
		errs = append(errs, ErrMissingEndpoint)
	}
	return errors.Join(errs...)
}

// Exporter writes aggregated metrics reports to a bucket.
type Exporter struct {
	client     ObjectPutter
	bucketName string
	logger     *slog.Logger
	timeNow    func() time.Time // For testability
}

// NewExporter creates an exporter backed by an S3 client with path-style
// addressing against the configured endpoint.
func NewExporter(cfg Config) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	client := s3.New(s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return NewExporterWithClient(client, cfg.BucketName, cfg.Logger), nil
}

// NewExporterWithClient creates an exporter around an existing client.
func NewExporterWithClient(client ObjectPutter, bucketName string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		client:     client,
		bucketName: bucketName,
		logger:     logger,
		timeNow:    time.Now,
	}
}

// ObjectKey builds the key of a report generated at the given time.
// Pattern: reports/{granularity}/{YYYY-MM-DD}/{uuid}.json
func ObjectKey(granularity analytics.Granularity, generatedAt time.Time) string {
	return fmt.Sprintf("reports/%s/%s/%s.json",
		granularity,
		generatedAt.UTC().Format(time.DateOnly),
		uuid.New().String(),
	)
}

// Export uploads a report of the given buckets and returns its object key.
func (e *Exporter) Export(ctx context.Context, granularity analytics.Granularity, buckets []analytics.AggregatedMetrics) (key string, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "report.export")
	defer func() { endSpan(err) }()

	if buckets == nil {
		buckets = []analytics.AggregatedMetrics{}
	}

	now := e.timeNow()
	body, err := json.Marshal(Document{
		GeneratedAt: now.UTC(),
		Granularity: granularity,
		Buckets:     buckets,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key = ObjectKey(granularity, now)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(ContentTypeJSON),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	e.logger.Info("report exported",
		"bucket", e.bucketName,
		"key", key,
		"granularity", granularity,
		"buckets", len(buckets),
		"bytes", len(body),
	)
	return key, nil
}
