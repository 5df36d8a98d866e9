// Package client holds outbound HTTP clients other than Supabase.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// DefaultMaxAssetBytes caps downloaded logos.
const DefaultMaxAssetBytes = 5 << 20

// AssetClient downloads public assets (company logos) for PDF export.
type AssetClient struct {
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	maxBytes   int64
}

// NewAssetClient creates a new AssetClient. maxBytes <= 0 uses DefaultMaxAssetBytes.
func NewAssetClient(httpClient *http.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, maxBytes int64) *AssetClient {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAssetBytes
	}
	return &AssetClient{
		httpClient: httpClient,
		cb:         cb,
		cfg:        cfg,
		maxBytes:   maxBytes,
	}
}

// Fetch downloads url with retry, circuit breaker, and tracing. It returns
// the body and its content type.
func (c *AssetClient) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "AssetClient.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("asset.url", url))

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", &domain.ErrValidation{Field: "url", Message: "unsupported asset url"}
	}

	type asset struct {
		data        []byte
		contentType string
	}

	result, err := c.cb.Execute(func() (any, error) {
		var a asset
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return resilience.Permanent(err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "asset", ID: url})
			}
			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("asset host returned status %d", resp.StatusCode)
				if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return resilience.Permanent(err)
				}
				return err
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
			if err != nil {
				return err
			}
			if int64(len(data)) > c.maxBytes {
				return resilience.Permanent(fmt.Errorf("asset larger than %d bytes", c.maxBytes))
			}

			a.data = data
			a.contentType = resp.Header.Get("Content-Type")
			if a.contentType == "" {
				a.contentType = http.DetectContentType(data)
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return a, nil
	})

	if err != nil {
		return nil, "", &domain.ErrExternalService{Service: "assets", Err: err}
	}

	a := result.(asset)
	return a.data, a.contentType, nil
}
