// Package s3 stores company logos in an S3 (or S3-compatible) bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("s3")

// PutObjectAPI is the part of the S3 client the blob store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the blob store.
type Options struct {
	Bucket string
	Region string
	// Prefix is prepended to every key, e.g. "logos/".
	Prefix string
	// Endpoint targets an S3-compatible service (MinIO, R2); path-style
	// addressing is used when set.
	Endpoint string
	// PublicBaseURL overrides the URL returned for uploaded objects (CDN).
	PublicBaseURL string
}

// BlobStore implements port.BlobStore.
type BlobStore struct {
	api    PutObjectAPI
	opts   Options
	logger *zap.Logger
}

// New loads the default AWS configuration for opts.Region and returns a store.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*BlobStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, opts, logger), nil
}

// NewWithAPI builds a store over an existing client.
func NewWithAPI(api PutObjectAPI, opts Options, logger *zap.Logger) *BlobStore {
	return &BlobStore{api: api, opts: opts, logger: logger}
}

// Upload overwrites the object at path and returns its public URL.
func (b *BlobStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "S3.Upload")
	defer span.End()

	key := b.key(path)
	span.SetAttributes(attribute.String("s3.bucket", b.opts.Bucket), attribute.String("s3.key", key))

	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(b.opts.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
	})
	if err != nil {
		b.logger.Error("s3: upload failed", zap.String("key", key), zap.Error(err))
		return "", &domain.ErrExternalService{Service: "s3", Err: err}
	}

	b.logger.Info("s3: object uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return b.PublicURL(path), nil
}

// PublicURL is the URL an uploaded object is served from.
func (b *BlobStore) PublicURL(path string) string {
	key := b.key(path)
	switch {
	case b.opts.PublicBaseURL != "":
		return strings.TrimRight(b.opts.PublicBaseURL, "/") + "/" + key
	case b.opts.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(b.opts.Endpoint, "/"), b.opts.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.opts.Bucket, b.opts.Region, key)
	}
}

func (b *BlobStore) key(path string) string {
	return b.opts.Prefix + strings.TrimLeft(path, "/")
}
