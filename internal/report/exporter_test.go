package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"

	"github.com/onnwee/rankiro/internal/analytics"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		BucketName:      "reports",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://example.r2.cloudflarestorage.com",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing bucket", mutate: func(c *Config) { c.BucketName = "" }, wantErr: ErrMissingBucket},
		{name: "missing access key", mutate: func(c *Config) { c.AccessKeyID = "" }, wantErr: ErrMissingAccessKey},
		{name: "missing secret", mutate: func(c *Config) { c.SecretAccessKey = "" }, wantErr: ErrMissingSecretKey},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: ErrMissingEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		err := Config{}.Validate()
		for _, want := range []error{ErrMissingBucket, ErrMissingAccessKey, ErrMissingSecretKey, ErrMissingEndpoint} {
			if !errors.Is(err, want) {
				t.Errorf("expected %v in %v", want, err)
			}
		}
	})
}

func TestNewExporter(t *testing.T) {
	if _, err := NewExporter(Config{}); err == nil {
		t.Error("expected error for empty config")
	}

	e, err := NewExporter(Config{
		BucketName:      "reports",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "http://localhost:9000",
	})
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	if e.bucketName != "reports" {
		t.Errorf("bucketName = %q", e.bucketName)
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)
	key := ObjectKey(analytics.GranularityDay, at)

	pattern := regexp.MustCompile(`^reports/day/2024-03-05/[0-9a-f-]{36}\.json$`)
	if !pattern.MatchString(key) {
		t.Errorf("key %q does not match %s", key, pattern)
	}

	if other := ObjectKey(analytics.GranularityDay, at); other == key {
		t.Error("keys should be unique")
	}
}

func TestObjectKey_UsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	at := time.Date(2024, 3, 6, 5, 0, 0, 0, loc) // 2024-03-05 19:00 UTC

	key := ObjectKey(analytics.GranularityWeek, at)
	if !regexp.MustCompile(`^reports/week/2024-03-05/`).MatchString(key) {
		t.Errorf("expected UTC date in key, got %q", key)
	}
}

func TestExporter_Export(t *testing.T) {
	putter := &fakePutter{}
	e := NewExporterWithClient(putter, "reports", testLogger())
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e.timeNow = func() time.Time { return fixed }

	buckets := []analytics.AggregatedMetrics{
		{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ItemID: "v1", TotalViews: 1500, AverageEngagementRate: 0.1, Samples: 2},
	}

	key, err := e.Export(context.Background(), analytics.GranularityDay, buckets)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if got := *putter.input.Key; got != key {
		t.Errorf("uploaded key %q, returned %q", got, key)
	}
	if got := *putter.input.Bucket; got != "reports" {
		t.Errorf("bucket = %q", got)
	}
	if got := *putter.input.ContentType; got != ContentTypeJSON {
		t.Errorf("content type = %q", got)
	}
	if got := *putter.input.ContentLength; got != int64(len(putter.body)) {
		t.Errorf("content length = %d, body is %d bytes", got, len(putter.body))
	}

	var doc Document
	if err := json.Unmarshal(putter.body, &doc); err != nil {
		t.Fatalf("failed to decode uploaded document: %v", err)
	}
	if !doc.GeneratedAt.Equal(fixed) {
		t.Errorf("generated_at = %v, want %v", doc.GeneratedAt, fixed)
	}
	if doc.Granularity != analytics.GranularityDay {
		t.Errorf("granularity = %q", doc.Granularity)
	}
	if len(doc.Buckets) != 1 || doc.Buckets[0].TotalViews != 1500 {
		t.Errorf("unexpected buckets: %+v", doc.Buckets)
	}
}

func TestExporter_Export_EmptyBuckets(t *testing.T) {
	putter := &fakePutter{}
	e := NewExporterWithClient(putter, "reports", testLogger())

	if _, err := e.Export(context.Background(), analytics.GranularityHour, nil); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(putter.body, &raw); err != nil {
		t.Fatalf("failed to decode uploaded document: %v", err)
	}
	buckets, ok := raw["buckets"].([]any)
	if !ok || len(buckets) != 0 {
		t.Errorf("expected empty buckets array, got %v", raw["buckets"])
	}
}

func TestExporter_Export_UploadError(t *testing.T) {
	uploadErr := errors.New("bucket unavailable")
	e := NewExporterWithClient(&fakePutter{err: uploadErr}, "reports", testLogger())

	_, err := e.Export(context.Background(), analytics.GranularityDay, nil)
	if !errors.Is(err, uploadErr) {
		t.Errorf("Export() error = %v, want wrapped %v", err, uploadErr)
	}
}
