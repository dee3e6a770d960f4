package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Publisher writes a snapshot somewhere a dashboard can read it.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// FilePublisher writes the snapshot to a local JSON file via an atomic
// rename, so a reader never observes a half-written file.
type FilePublisher struct {
	path string
}

var _ Publisher = (*FilePublisher)(nil)

// NewFilePublisher creates a file publisher targeting path.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{path: path}
}

// Publish writes the snapshot.
func (p *FilePublisher) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("dashboard: marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dashboard: create dir %s: %w", dir, err)
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dashboard: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("dashboard: rename snapshot: %w", err)
	}
	return nil
}

// S3Config holds connection parameters for an S3-compatible object store.
// Endpoint stays empty for standard AWS S3; compatible providers (MinIO,
// R2, iDrive e2) set it plus ForcePathStyle.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Key            string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// S3Publisher uploads the snapshot to object storage.
type S3Publisher struct {
	uploader *manager.Uploader
	bucket   string
	key      string
}

var _ Publisher = (*S3Publisher)(nil)

// NewS3Publisher creates an S3 publisher.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("dashboard: s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("dashboard: s3 region is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &S3Publisher{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		key:      cfg.Key,
	}, nil
}

// Publish uploads the snapshot.
func (p *S3Publisher) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("dashboard: marshal snapshot: %w", err)
	}
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("dashboard: upload snapshot: %w", err)
	}
	return nil
}

// MultiPublisher fans out to several publishers, returning the first error
// after trying all of them.
type MultiPublisher []Publisher

var _ Publisher = (MultiPublisher)(nil)

// Publish sends the snapshot to every publisher.
func (m MultiPublisher) Publish(ctx context.Context, snap Snapshot) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// normaliseEndpoint ensures the endpoint carries a scheme. A plain Parse is
// not enough here: "minio:9000" parses as scheme "minio".
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + endpoint
}
