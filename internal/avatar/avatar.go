// Package avatar uploads profile images to object storage and reports the
// public URL they are served from.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/abduss/accounts/internal/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

var (
	// ErrMissingFile is returned when the local file to upload does not exist.
	ErrMissingFile = errors.New("avatar file not found")
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown avatar backend")
)

const defaultContentType = "application/octet-stream"

// Uploader stores a local image file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// New builds the uploader selected by cfg.Avatar.Backend. minioClient is only
// used by the MinIO backend.
func New(ctx context.Context, cfg config.Config, minioClient *minio.Client) (Uploader, error) {
	switch cfg.Avatar.Backend {
	case "", config.AvatarBackendMinIO:
		if minioClient == nil {
			return nil, errors.New("minio avatar backend requires a client")
		}
		return NewMinIOUploader(minioClient, cfg.MinIO, cfg.Avatar.KeyPrefix), nil
	case config.AvatarBackendS3:
		client, err := NewS3Client(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return NewS3Uploader(client, cfg.MinIO, cfg.Avatar.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Avatar.Backend)
	}
}

// objectKey names the stored object after a fresh uuid, keeping the
// lower-cased extension of the source file.
func objectKey(prefix, localPath string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(localPath))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func contentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	return defaultContentType
}

// baseURL is the address objects are served from: the configured public
// URL, or the store endpoint itself.
func baseURL(cfg config.MinIOConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}

func objectURL(base, bucket, key string) string {
	return base + "/" + bucket + "/" + key
}

func checkFile(localPath string) error {
	if strings.TrimSpace(localPath) == "" {
		return ErrMissingFile
	}
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrMissingFile
		}
		return fmt.Errorf("stat avatar: %w", err)
	}
	if info.IsDir() {
		return ErrMissingFile
	}
	return nil
}
