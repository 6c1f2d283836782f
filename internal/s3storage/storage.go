// Package s3storage keeps exported result artifacts in MinIO/S3 and hands out
// presigned download links for them.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/skypulse/internal/config"
)

// Storage wraps MinIO/S3 interactions for export artifacts.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.ExportBucket, region: cfg.S3Region}, nil
}

// EnsureBucket creates the export bucket when it does not exist yet.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ExportKey lays artifacts out per session with a unique prefix so repeated
// exports never overwrite each other.
func ExportKey(sessionID, filename string) string {
	return path.Join("sessions", sessionID, uuid.NewString(), filename)
}

// UploadExport stores one artifact and returns its object key.
func (s *Storage) UploadExport(ctx context.Context, sessionID, filename, contentType string, data []byte) (string, error) {
	key := ExportKey(sessionID, filename)
	opts := minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", filename),
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	return key, nil
}

// PresignExportURL returns a signed GET URL for an uploaded artifact.
func (s *Storage) PresignExportURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign export: %w", err)
	}
	return u.String(), nil
}
