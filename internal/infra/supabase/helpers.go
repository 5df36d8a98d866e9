package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for POST, PATCH, DELETE
// ============================================================

// doPost sends payload (an object or an array of rows) to a table path.
// prefer is the PostgREST Prefer header; empty means return=representation.
func (c *Client) doPost(ctx context.Context, path string, payload any, prefer string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.restURL(path), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	if prefer == "" {
		prefer = "return=representation"
	}
	req.Header.Set("Prefer", prefer)

	body, status, err := c.send(req, path)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("supabase: POST OK", zap.String("path", path), zap.Int("status", status))
	return body, nil
}

// doPatch updates the rows matched by path and returns their new representation.
func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) ([]byte, error) {
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, c.restURL(path), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	body, _, err := c.send(req, path)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("supabase: PATCH OK", zap.String("path", path))
	return body, nil
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.restURL(path), nil)
	if err != nil {
		return err
	}

	if _, _, err := c.send(req, path); err != nil {
		return err
	}
	c.logger.Debug("supabase: DELETE OK", zap.String("path", path))
	return nil
}

// eq builds a PostgREST equality filter value.
func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// isEmpty reports whether a PostgREST body carries no rows.
func isEmpty(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || string(b) == "[]" || string(b) == "null"
}
