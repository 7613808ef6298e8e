package avatar

import (
	"context"
	"fmt"
	"os"

	"github.com/abduss/accounts/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client for an S3-compatible endpoint using the
// static credentials in cfg.
func NewS3Client(ctx context.Context, cfg config.MinIOConfig) (*s3.Client, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := baseURLFromEndpoint(cfg)
	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}

// S3Uploader writes avatars through the S3 API.
type S3Uploader struct {
	client objectPutter
	bucket string
	prefix string
	base   string
}

// NewS3Uploader constructs an uploader for cfg.Bucket.
func NewS3Uploader(client objectPutter, cfg config.MinIOConfig, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		base:   baseURL(cfg),
	}
}

// Upload stores the file at localPath and returns its URL.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if err := checkFile(localPath); err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open avatar: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, defaultUploadTimeout)
	defer cancel()

	key := objectKey(u.prefix, localPath)
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	}); err != nil {
		return "", fmt.Errorf("put avatar object: %w", err)
	}

	return objectURL(u.base, u.bucket, key), nil
}

// baseURLFromEndpoint ignores PublicBaseURL: the client must talk to the
// store itself.
func baseURLFromEndpoint(cfg config.MinIOConfig) string {
	cfg.PublicBaseURL = ""
	return baseURL(cfg)
}
