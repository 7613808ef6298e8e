package avatar

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/accounts/internal/config"
	"github.com/minio/minio-go/v7"
)

const defaultUploadTimeout = 30 * time.Second

type filePutter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOUploader writes avatars into a MinIO bucket.
type MinIOUploader struct {
	client filePutter
	bucket string
	prefix string
	base   string
}

// NewMinIOUploader constructs an uploader for cfg.Bucket.
func NewMinIOUploader(client filePutter, cfg config.MinIOConfig, prefix string) *MinIOUploader {
	return &MinIOUploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		base:   baseURL(cfg),
	}
}

// Upload stores the file at localPath and returns its URL.
func (u *MinIOUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if err := checkFile(localPath); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultUploadTimeout)
	defer cancel()

	key := objectKey(u.prefix, localPath)
	if _, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	}); err != nil {
		return "", fmt.Errorf("put avatar object: %w", err)
	}

	return objectURL(u.base, u.bucket, key), nil
}
