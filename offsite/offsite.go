// Package offsite copies finished artifacts to S3-compatible object storage.
package offsite

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes the bucket artifacts are copied to.
type Config struct {
	Endpoint  string // host:port, no scheme
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string // Key prefix, e.g. "backups"
	Region    string // Defaults to us-east-1
}

// Uploader puts artifacts into a bucket under <prefix>/<host>/<file>.
type Uploader struct {
	mc     *minio.Client
	bucket string
	prefix string

	ensureOnce sync.Once
	ensureErr  error
}

// New creates an Uploader. No request is made until the first upload.
func New(cfg Config) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &Uploader{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Bucket returns the target bucket name.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// EnsureBucket creates the bucket if it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.mc.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.mc.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload copies the file at localPath and returns the object key it was stored under.
func (u *Uploader) Upload(ctx context.Context, host, localPath string) (string, error) {
	u.ensureOnce.Do(func() { u.ensureErr = u.EnsureBucket(ctx) })
	if u.ensureErr != nil {
		return "", u.ensureErr
	}

	name := filepath.Base(localPath)
	key := ObjectKey(u.prefix, host, name)

	_, err := u.mc.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: ContentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey joins prefix, host and file name into an object key.
func ObjectKey(prefix, host, filename string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, host, filename} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

// ContentType guesses the MIME type from an artifact name.
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".sql"):
		return "application/sql"
	default:
		return "application/octet-stream"
	}
}
