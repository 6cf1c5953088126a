// Package stage archives raw API payloads before any parsing, so a bad
// transform can always be replayed from the original bytes. Sinks write to
// S3 in production and to a local directory in development.
package stage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink uploads raw payloads to one S3 bucket under a fixed key prefix.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Sink creates a sink using the default AWS configuration chain.
func NewS3Sink(ctx context.Context, bucket, prefix, region string, logger *slog.Logger) (*S3Sink, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Sink{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Put uploads one payload under prefix/key.
func (s *S3Sink) Put(ctx context.Context, key string, body []byte) error {
	fullKey := s.prefix + "/" + key
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, fullKey, err)
	}
	s.logger.Debug("staged payload", "bucket", s.bucket, "key", fullKey, "bytes", len(body))
	return nil
}
