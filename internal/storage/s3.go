// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storage uploads operation results to S3-compatible object storage
// and hands out time-limited presigned download URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ManuGH/spcut/internal/log"
	"github.com/ManuGH/spcut/internal/metrics"
	"github.com/ManuGH/spcut/internal/telemetry"
)

// Publisher uploads a local file and returns a presigned GET URL for it.
type Publisher interface {
	Publish(ctx context.Context, bucket, key, path string, ttl time.Duration) (string, error)
}

// Config configures the S3 client.
type Config struct {
	Region          string
	Endpoint        string // custom endpoint for MinIO and other S3-compatible stores
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store is the aws-sdk-go-v2 backed Publisher.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	tracer  trace.Tracer
}

var _ Publisher = (*S3Store)(nil)

// NewS3Store loads the default AWS configuration chain, overridden by cfg.
func NewS3Store(ctx context.Context, cfg Config, tracer trace.Tracer) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Many S3-compatible stores reject the default trailing checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &S3Store{client: client, presign: s3.NewPresignClient(client), tracer: tracer}, nil
}

// Upload puts the file at path under bucket/key.
func (s *S3Store) Upload(ctx context.Context, bucket, key, path, contentType string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat upload source: %w", err)
	}

	if contentType == "" {
		contentType = ContentType(path)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("put object s3://%s/%s: %w", bucket, key, err)
	}
	metrics.AddTransferBytes("upload", fi.Size())
	return fi.Size(), nil
}

// PresignGet returns a GET URL for bucket/key valid for ttl.
func (s *S3Store) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("presign ttl must be positive")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}

// Publish uploads path and presigns the resulting object.
func (s *S3Store) Publish(ctx context.Context, bucket, key, path string, ttl time.Duration) (url string, err error) {
	ctx, span := s.tracer.Start(ctx, "storage.publish", trace.WithAttributes(telemetry.StorageAttributes(bucket, key, -1)...))
	defer func() { telemetry.EndSpan(span, err) }()

	n, err := s.Upload(ctx, bucket, key, path, "")
	if err != nil {
		return "", err
	}
	span.SetAttributes(telemetry.StorageAttributes(bucket, key, n)...)

	url, err = s.PresignGet(ctx, bucket, key, ttl)
	if err != nil {
		return "", err
	}

	logger := log.WithComponentFromContext(ctx, "storage")
	logger.Info().
		Str(log.FieldEvent, "storage.published").
		Str(log.FieldBucket, bucket).
		Str(log.FieldKey, key).
		Int64("bytes", n).
		Dur("ttl", ttl).
		Msg("object uploaded and presigned")
	return url, nil
}

var contentTypes = map[string]string{
	".mov": "video/quicktime",
	".mp4": "video/mp4",
	".m4v": "video/x-m4v",
	".ts":  "video/mp2t",
	".mkv": "video/x-matroska",
}

// ContentType guesses a video MIME type from the file extension.
func ContentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey namespaces an object under its job: "<jobID>/<file base name>".
func ObjectKey(jobID, path string) string {
	return jobID + "/" + filepath.Base(path)
}
