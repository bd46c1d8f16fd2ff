package publish

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"labelreel/internal/services"
)

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	// Location renders key as a user-facing URI.
	Location(key string) string
}

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads objects into one bucket.
type S3Uploader struct {
	client S3API
	bucket string
}

// NewS3Uploader loads AWS credentials from the default chain (environment,
// shared config, instance role). region overrides the configured region when set.
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "configure", "publish.bucket is not set", nil)
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "load aws config", "", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3UploaderWithClient wraps an existing S3 client.
func NewS3UploaderWithClient(client S3API, bucket string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket}
}

// Upload puts body at key.
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return services.Wrap(services.ErrExternalTool, "publish", "s3 put object", key, err)
	}
	return nil
}

// Location returns the s3:// URI of key.
func (u *S3Uploader) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", u.bucket, key)
}

// UploadFile uploads the file at localPath to key.
func UploadFile(ctx context.Context, uploader Uploader, localPath, key string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if err := uploader.Upload(ctx, key, f, info.Size(), contentType(localPath)); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ObjectKey joins prefix, run id and name into an object key.
func ObjectKey(prefix, runID, name string) string {
	parts := make([]string, 0, 3)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, runID, strings.TrimLeft(filepath.ToSlash(name), "/"))
	return path.Join(parts...)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	if value := mime.TypeByExtension(filepath.Ext(name)); value != "" {
		return value
	}
	return "application/octet-stream"
}
