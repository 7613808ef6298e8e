package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/accounts/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectStoreTimeout = 5 * time.Second

// NewMinIOClient builds a MinIO client for the avatar store.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint := MinIOEndpoint(cfg)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// MinIOEndpoint returns cfg.Endpoint as host:port, defaulting to the MinIO
// API port.
func MinIOEndpoint(cfg config.MinIOConfig) string {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.Contains(endpoint, ":") {
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}
	return endpoint
}

// EnsureBucket creates the avatar bucket when missing. When publicRead is set
// it also installs an anonymous read policy so returned avatar URLs resolve.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string, publicRead bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}

	if publicRead {
		if err := client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
			return fmt.Errorf("set bucket policy %q: %w", bucket, err)
		}
	}

	return nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}
