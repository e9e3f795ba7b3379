package blob

import (
	"context"
	"fmt"
	"io"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 stores attachment payloads in an S3-compatible bucket (AWS or MinIO).
// One bucket, one optional key prefix.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Store = (*S3)(nil)

// S3Options configures the bucket connection. Credentials come from the
// default chain.
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO-style deployments
	Prefix   string
}

// NewS3 builds the client and verifies nothing; the first Put or Get will
// surface connectivity problems.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (s *S3) key(handle string) string {
	if s.prefix == "" {
		return handle
	}
	return path.Join(s.prefix, handle)
}

func (s *S3) Put(ctx context.Context, handle, mediaType string, r io.Reader) error {
	key := s.key(handle)
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r}
	if mediaType != "" {
		input.ContentType = &mediaType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload attachment %s: %w", handle, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	key := s.key(handle)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("fetch attachment %s: %w", handle, err)
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, handle string) error {
	key := s.key(handle)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return fmt.Errorf("delete attachment %s: %w", handle, err)
	}
	return nil
}
