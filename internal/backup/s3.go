// Package backup stores database dumps in S3-compatible object storage.
package backup

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// putObjectAPI is the subset of *s3.Client the uploader needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Uploader writes backups to one bucket.
type S3Uploader struct {
	client putObjectAPI
	bucket string
	logger zerolog.Logger
}

func NewS3Uploader(cfg S3Config, logger zerolog.Logger) *S3Uploader {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &S3Uploader{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "backup").Logger(),
	}
}

func (u *S3Uploader) Bucket() string { return u.bucket }

// Upload stores body under key. body must be seekable so the request can be
// signed and retried.
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.ReadSeeker, size int64) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("upload backup %s: %w", key, err)
	}
	u.logger.Info().Str("bucket", u.bucket).Str("key", key).Int64("size", size).Msg("backup uploaded")
	return nil
}

// ObjectKey names the object a database dump is stored under.
func ObjectKey(tenantSlug, databaseName string, at time.Time) string {
	return path.Join("backups", tenantSlug, databaseName, at.UTC().Format("20060102T150405Z")+".dump")
}
