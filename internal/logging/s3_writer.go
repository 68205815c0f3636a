package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"travelmate/internal/utils"
)

// BatchWriter persists a batch of records and returns where they went
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*ResolutionRecord) (string, error)
}

// S3WriterConfig selects the bucket and object naming
type S3WriterConfig struct {
	Bucket  string
	Region  string
	Prefix  string
	PodName string
	// Endpoint overrides the AWS endpoint (MinIO and other S3 compatible stores)
	Endpoint     string
	UsePathStyle bool
}

// s3API is the subset of the S3 client the writer needs
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer handles writing batches of resolution records to S3
type S3Writer struct {
	client  s3API
	bucket  string
	prefix  string
	podName string
	now     func() time.Time
	logger  *utils.Logger
}

// NewS3Writer creates a new S3 writer using the default AWS credential chain
func NewS3Writer(ctx context.Context, cfg S3WriterConfig) (*S3Writer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Writer(client, cfg), nil
}

func newS3Writer(client s3API, cfg S3WriterConfig) *S3Writer {
	podName := cfg.PodName
	if podName == "" {
		podName = "travelmate"
	}
	return &S3Writer{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		podName: podName,
		now:     time.Now,
		logger:  utils.NewLogger("s3-writer"),
	}
}

// objectKey builds prefix/YYYY/MM/DD/pod-YYYYMMDD-HHMMSS-nanos.jsonl
func (w *S3Writer) objectKey(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		w.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		w.podName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}

// WriteBatch writes a batch of records to S3 as a JSON Lines file.
// Returns the S3 key where the data was written.
func (w *S3Writer) WriteBatch(ctx context.Context, records []*ResolutionRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	key := w.objectKey(w.now())

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			w.logger.Error("Failed to encode record", "request_id", record.RequestID, "error", err)
			continue
		}
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	w.logger.Info("Wrote batch to S3", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}

// LogWriter writes batches through the package logger. Used when no bucket is configured.
type LogWriter struct{}

func (LogWriter) WriteBatch(ctx context.Context, records []*ResolutionRecord) (string, error) {
	for _, r := range records {
		Debugf("audit request=%s source=%s provider=%s latency_ms=%d error=%q",
			r.RequestID, r.Source, r.Provider, r.LatencyMs, r.Error)
	}
	return "log", nil
}
