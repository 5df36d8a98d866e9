package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Empresas (company profile), one row per user_id
// ============================================================

func (c *Client) GetCompany(ctx context.Context, userID string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var company *domain.Company
	err := c.call(ctx, "supabase/empresas", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("empresas?user_id=%s&limit=1", eq(userID)))
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "empresa", ID: userID})
		}

		var rows []domain.Company
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode empresa: %w", err))
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "empresa", ID: userID})
		}
		company = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

// UpsertCompany writes the profile with on_conflict=user_id so a user never
// ends up with two rows.
func (c *Client) UpsertCompany(ctx context.Context, co *domain.Company) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertCompany")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", co.UserID))

	payload := map[string]any{
		"user_id":      co.UserID,
		"nome":         co.Nome,
		"cnpj":         co.CNPJ,
		"telefone":     co.Telefone,
		"email":        co.Email,
		"endereco":     co.Endereco,
		"cor_primaria": co.CorPrimaria,
		"logo_url":     nullable(co.LogoURL),
	}

	var saved *domain.Company
	err := c.call(ctx, "supabase/empresas", func() error {
		body, err := c.doPost(ctx, "empresas?on_conflict=user_id", payload,
			"resolution=merge-duplicates,return=representation")
		if err != nil {
			return err
		}

		var rows []domain.Company
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode empresa: %w", err))
		}
		if len(rows) == 0 {
			return fmt.Errorf("upsert empresa returned no rows")
		}
		saved = &rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("supabase: empresa saved", zap.String("user_id", saved.UserID))
	return saved, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
