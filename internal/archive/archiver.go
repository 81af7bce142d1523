// Package archive exports the audit log to S3-compatible object storage
// (Cloudflare R2 in production), one JSON-lines object per plant-local day.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"barrel-backend/internal/metrics"
	"barrel-backend/internal/models"
	"barrel-backend/internal/timeutil"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const pageSize = 500

// Source lists audit entries. *services.AuditService satisfies it.
type Source interface {
	List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error)
}

// Uploader is the subset of *s3.Client the archiver needs.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// NewS3Client builds a client for the configured endpoint. Static credentials
// are used when both keys are set; otherwise the default AWS chain applies.
func NewS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	loaders := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure archive client: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Archiver writes daily audit exports.
type Archiver struct {
	source   Source
	uploader Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

func New(source Source, uploader Uploader, bucket, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		source:   source,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
	}
}

// Key is the object key of day's export: <prefix>/YYYY/MM/DD.jsonl.
func Key(prefix string, day time.Time) string {
	d := day.In(timeutil.Plant)
	return path.Join(prefix, d.Format("2006"), d.Format("01"), d.Format("02")+".jsonl")
}

// Result describes one archived day.
type Result struct {
	Key     string `json:"key"`
	Entries int    `json:"entries"`
	Bytes   int    `json:"bytes"`
}

// ArchiveDay uploads every entry of the plant-local day containing day, in
// sequence order. Re-running overwrites the object with the same content.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (*Result, error) {
	res, err := a.archiveDay(ctx, day)
	if err != nil {
		metrics.AuditArchiveRuns.WithLabelValues("failure").Inc()
		a.logger.Error("audit archive failed", "component", "archive", "day", day.Format(timeutil.DateLayout), "err", err)
		return nil, err
	}
	metrics.AuditArchiveRuns.WithLabelValues("success").Inc()
	a.logger.Info("audit archived", "component", "archive", "key", res.Key, "entries", res.Entries, "bytes", res.Bytes)
	return res, nil
}

func (a *Archiver) archiveDay(ctx context.Context, day time.Time) (*Result, error) {
	if a.bucket == "" {
		return nil, errors.New("archive bucket is not configured")
	}
	from, to := timeutil.DayBounds(day)

	var (
		buf     bytes.Buffer
		entries int
	)
	enc := json.NewEncoder(&buf)
	for offset := 0; ; offset += pageSize {
		page, err := a.source.List(ctx, models.AuditFilter{
			From:      &from,
			To:        &to,
			Ascending: true,
			Limit:     pageSize,
			Offset:    offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list audit entries: %w", err)
		}
		for _, entry := range page {
			if err := enc.Encode(entry); err != nil {
				return nil, fmt.Errorf("failed to encode audit entry %d: %w", entry.Seq, err)
			}
		}
		entries += len(page)
		if len(page) < pageSize {
			break
		}
	}

	key := Key(a.prefix, from)
	size := buf.Len()
	_, err := a.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return &Result{Key: key, Entries: entries, Bytes: size}, nil
}

// Run archives the previous plant-local day every interval until ctx is done.
func (a *Archiver) Run(ctx context.Context, interval time.Duration, now func() time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("audit archiver started", "component", "archive", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("audit archiver stopped", "component", "archive")
			return
		case <-ticker.C:
			yesterday := timeutil.StartOfDay(now()).AddDate(0, 0, -1)
			_, _ = a.ArchiveDay(ctx, yesterday)
		}
	}
}
