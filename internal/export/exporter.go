// Package export writes payment search results to S3 as JSON lines.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/payconiq-go/pkg/logging"
	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

// S3API is the subset of the S3 client used by S3Exporter.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Batch is one export: the payments returned for a date range search.
type Batch struct {
	From       string
	To         string
	Payments   []payconiq.Payment
	ExportedAt time.Time
}

// ManifestEntry is one line of the monthly manifest.
type ManifestEntry struct {
	Key        string `json:"key"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Count      int    `json:"count"`
	ExportedAt string `json:"exportedAt"`
}

// S3Exporter writes batches under a key prefix in one bucket.
type S3Exporter struct {
	bucket   string
	prefix   string
	s3Client S3API
	logger   *logging.Logger
}

// NewS3Exporter creates an exporter. If bucket is empty, Export is a no-op.
func NewS3Exporter(s3Client S3API, bucket, prefix string, logger *logging.Logger) *S3Exporter {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Exporter{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		s3Client: s3Client,
		logger:   logger,
	}
}

// Enabled returns true if a bucket and client are configured.
func (e *S3Exporter) Enabled() bool {
	return e != nil && e.bucket != "" && e.s3Client != nil
}

// Export uploads the batch and returns the object key. It returns "" when
// the exporter is disabled.
func (e *S3Exporter) Export(ctx context.Context, batch Batch) (string, error) {
	if !e.Enabled() {
		return "", nil
	}

	var buf bytes.Buffer
	if err := WriteJSONLines(&buf, batch.Payments); err != nil {
		return "", err
	}

	now := batch.ExportedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	key := e.objectKey(now, batch.From, batch.To)

	_, err := e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("export: s3 put %s: %w", key, err)
	}

	e.logger.Info("exported payments to S3",
		"s3_key", key,
		"count", len(batch.Payments),
		"from", batch.From,
		"to", batch.To,
	)

	entry := ManifestEntry{
		Key:        key,
		From:       batch.From,
		To:         batch.To,
		Count:      len(batch.Payments),
		ExportedAt: now.Format(time.RFC3339),
	}
	if err := e.appendManifest(ctx, now, entry); err != nil {
		// the batch itself is already stored
		e.logger.Warn("failed to append export manifest", "error", err, "s3_key", key)
	}
	return key, nil
}

func (e *S3Exporter) objectKey(now time.Time, from, to string) string {
	name := fmt.Sprintf("%s_%s_%s.jsonl", keySegment(from), keySegment(to), now.Format("150405"))
	return e.join(fmt.Sprintf("by-date/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), name))
}

func (e *S3Exporter) manifestKey(now time.Time) string {
	return e.join(fmt.Sprintf("manifests/%d-%02d.jsonl", now.Year(), now.Month()))
}

func (e *S3Exporter) join(rest string) string {
	if e.prefix == "" {
		return rest
	}
	return e.prefix + "/" + rest
}

// keySegment keeps a date bound readable in a key while dropping characters
// S3 treats specially.
func keySegment(bound string) string {
	bound = strings.TrimSpace(bound)
	if bound == "" {
		return "open"
	}
	return strings.NewReplacer(":", "", "/", "-", " ", "").Replace(bound)
}

// appendManifest appends a line to the monthly manifest. S3 has no append so
// the object is read, extended and written back.
func (e *S3Exporter) appendManifest(ctx context.Context, now time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("export: marshal manifest entry: %w", err)
	}
	key := e.manifestKey(now)

	var existing []byte
	resp, err := e.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("export: read manifest: %w", err)
		}
	case isNoSuchKey(err):
		e.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("export: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("export: s3 put manifest: %w", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

// WriteJSONLines writes one payment object per line, exactly as received.
func WriteJSONLines(w io.Writer, payments []payconiq.Payment) error {
	for i := range payments {
		line, err := json.Marshal(payments[i])
		if err != nil {
			return fmt.Errorf("export: marshal payment %s: %w", payments[i].PaymentID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("export: write: %w", err)
		}
	}
	return nil
}
