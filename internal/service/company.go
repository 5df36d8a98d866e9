package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var companyTracer = otel.Tracer("service/company")

// MaxLogoBytes caps uploaded logos.
const MaxLogoBytes = 5 << 20

var logoExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

// CompanyService manages the company profile of the current identity.
type CompanyService struct {
	store   port.CompanyStore
	blobs   port.BlobStore
	colors  port.ColorExtractor
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCompanyService creates the company service.
func NewCompanyService(store port.CompanyStore, blobs port.BlobStore, colors port.ColorExtractor, metrics *observability.Metrics, logger *zap.Logger) *CompanyService {
	return &CompanyService{store: store, blobs: blobs, colors: colors, metrics: metrics, logger: logger}
}

// Get returns the profile. A user without one gets an empty profile with
// the default brand color.
func (s *CompanyService) Get(ctx context.Context, id domain.Identity) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.Get")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	c, err := s.store.GetCompany(ctx, id.UserID())
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return &domain.Company{UserID: id.UserID(), CorPrimaria: domain.DefaultBrandColor}, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

// Save upserts the profile of the identity. The owner always comes from the
// identity, never from the payload.
func (s *CompanyService) Save(ctx context.Context, id domain.Identity, c domain.Company) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.Save")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	c.UserID = id.UserID()
	c.CorPrimaria = strings.TrimSpace(c.CorPrimaria)
	if c.CorPrimaria != "" && !domain.IsValidColor(c.CorPrimaria) {
		return nil, &domain.ErrValidation{Field: "cor_primaria", Message: "cor deve ser #rrggbb ou rgb(r,g,b)"}
	}

	saved, err := s.store.UpsertCompany(ctx, &c)
	if err != nil {
		return nil, fmt.Errorf("save company: %w", err)
	}
	s.logger.Info("company saved", zap.String("user_id", c.UserID))
	return saved, nil
}

// UploadLogo stores the logo at {userId}/logo.{ext}, extracts its dominant
// color and persists both on the profile. When no color can be extracted
// the previous brand color is kept.
func (s *CompanyService) UploadLogo(ctx context.Context, id domain.Identity, filename string, data []byte) (*domain.Company, error) {
	ctx, span := companyTracer.Start(ctx, "CompanyService.UploadLogo")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	if s.blobs == nil {
		return nil, &domain.ErrForbidden{Action: "upload de logo não configurado"}
	}
	if len(data) == 0 {
		return nil, &domain.ErrValidation{Field: "logo", Message: "arquivo vazio"}
	}
	if len(data) > MaxLogoBytes {
		return nil, &domain.ErrValidation{Field: "logo", Message: "arquivo maior que 5 MB"}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !logoExtensions[ext] {
		return nil, &domain.ErrValidation{Field: "logo", Message: "formato de imagem não suportado"}
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	path := LogoPath(id.UserID(), ext)
	span.SetAttributes(
		attribute.String("blob.path", path),
		attribute.Int("blob.size", len(data)),
	)

	url, err := s.blobs.Upload(ctx, path, data, contentType)
	if err != nil {
		s.metrics.IncrExternalError("blob")
		return nil, fmt.Errorf("upload logo: %w", err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	current.LogoURL = url

	color, err := s.colors.ExtractColor(ctx, data)
	switch {
	case err != nil:
		s.metrics.IncrColorExtraction("none")
		s.logger.Info("no color extracted from logo, keeping brand color",
			zap.String("user_id", id.UserID()),
			zap.Error(err),
		)
	default:
		s.metrics.IncrColorExtraction("ok")
		current.CorPrimaria = color
	}

	saved, err := s.store.UpsertCompany(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("save company logo: %w", err)
	}
	return saved, nil
}

// LogoPath is the blob path of a user's logo; ext includes the dot.
func LogoPath(userID, ext string) string {
	return userID + "/logo" + strings.ToLower(ext)
}
