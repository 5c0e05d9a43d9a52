// Package snapshot publishes the current job listing as a JSON document, either to a
// local directory or to an S3 bucket.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"freelance-marketplace/internal/config"
	"freelance-marketplace/internal/models"
	"freelance-marketplace/internal/telemetry"
)

type uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Document is the published shape.
type Document struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Count       int                `json:"count"`
	Jobs        []models.JobRecord `json:"jobs"`
}

// Publisher writes listing snapshots under a fixed key.
type Publisher struct {
	up  uploader
	key string
	now func() time.Time
}

// New picks S3 when SNAPSHOT_S3_BUCKET is set, otherwise the local directory.
func New(ctx context.Context, cfg config.Config) (*Publisher, error) {
	key := cfg.SnapshotKey
	if key == "" {
		key = "jobs/all.json"
	}
	if cfg.SnapshotS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Publisher{up: &s3Uploader{client: client, bucket: cfg.SnapshotS3Bucket}, key: sanitizeKey(key), now: time.Now}, nil
	}
	return NewLocal(cfg.SnapshotDir, key), nil
}

// NewLocal writes snapshots below dir.
func NewLocal(dir, key string) *Publisher {
	if dir == "" {
		dir = "./output"
	}
	return &Publisher{up: &localUploader{baseDir: dir}, key: sanitizeKey(key), now: time.Now}
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SnapshotS3Region),
	}
	if cfg.SnapshotS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.SnapshotS3Endpoint,
					HostnameImmutable: cfg.SnapshotS3PathStyle,
					SigningRegion:     cfg.SnapshotS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.SnapshotS3PathStyle
	}), nil
}

// Publish encodes jobs and uploads them. It returns the location written.
func (p *Publisher) Publish(ctx context.Context, jobs []models.JobRecord) (string, error) {
	if p == nil || p.up == nil {
		return "", errors.New("no snapshot destination configured")
	}
	if jobs == nil {
		jobs = []models.JobRecord{}
	}
	body, err := json.MarshalIndent(Document{
		GeneratedAt: p.now().UTC(),
		Count:       len(jobs),
		Jobs:        jobs,
	}, "", "  ")
	if err != nil {
		telemetry.SnapshotPublishes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	loc, err := p.up.Upload(ctx, p.key, body, "application/json")
	if err != nil {
		telemetry.SnapshotPublishes.WithLabelValues("error").Inc()
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	telemetry.SnapshotPublishes.WithLabelValues("ok").Inc()
	return loc, nil
}

// Source supplies the full job listing for a resync.
type Source interface {
	ListAllJobs(ctx context.Context) ([]models.JobRecord, error)
}

// Resync reads the listing from src and publishes it. A failed read publishes
// nothing, so the last good snapshot stays in place.
func (p *Publisher) Resync(ctx context.Context, src Source) (string, int, error) {
	jobs, err := src.ListAllJobs(ctx)
	if err != nil {
		telemetry.SnapshotPublishes.WithLabelValues("skipped").Inc()
		return "", 0, fmt.Errorf("list jobs: %w", err)
	}
	loc, err := p.Publish(ctx, jobs)
	if err != nil {
		return "", 0, err
	}
	return loc, len(jobs), nil
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	for strings.HasPrefix(key, "../") {
		key = strings.TrimPrefix(key, "../")
	}
	return key
}

type localUploader struct {
	baseDir string
}

func (l *localUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	// Write then rename so readers never see a partial document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	return path, nil
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (s *s3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
