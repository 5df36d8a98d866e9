package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Storage uploads objects to a public Supabase Storage bucket.
type Storage struct {
	client *Client
	bucket string
}

// NewStorage returns a blob store for bucket.
func NewStorage(client *Client, bucket string) *Storage {
	return &Storage{client: client, bucket: bucket}
}

// Upload writes data at path, replacing any existing object, and returns the
// object's public URL.
func (s *Storage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Storage.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.bucket", s.bucket),
		attribute.String("storage.path", path),
		attribute.Int("storage.size", len(data)),
	)

	objectPath := escapePath(path)
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.client.baseURL, url.PathEscape(s.bucket), objectPath)

	err := s.client.call(ctx, "supabase/storage", func() error {
		req, err := s.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")
		req.Header.Set("Cache-Control", "max-age=3600")
		_, _, err = s.client.send(req, "storage/"+s.bucket)
		return err
	})
	if err != nil {
		return "", err
	}

	s.client.logger.Info("supabase: object uploaded",
		zap.String("bucket", s.bucket),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return s.PublicURL(path), nil
}

// PublicURL is the anonymous download URL of an object in the bucket.
func (s *Storage) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.client.baseURL, url.PathEscape(s.bucket), escapePath(path))
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
