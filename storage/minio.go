package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds object-storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioUploader implements BlobUploader on a MinIO/S3 bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader creates the client and verifies the target bucket
// exists.
func NewMinioUploader(ctx context.Context, cfg MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: bucket check: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("minio: bucket %s does not exist", cfg.Bucket)
	}

	return &MinioUploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload writes one object under the given path.
func (u *MinioUploader) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := u.client.PutObject(ctx, u.bucket, path,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("minio: put %s: %w", path, err)
	}
	return nil
}
