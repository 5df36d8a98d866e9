package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed on top of the logo size for the
// multipart envelope.
const multipartOverhead = 64 << 10

// ============================================================
// Empresa
// ============================================================

func getCompanyHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/empresa")
		defer span.End()

		c, err := svc.Get(ctx, IdentityFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func saveCompanyHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/empresa")
		defer span.End()

		var req companyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		c, err := svc.Save(ctx, IdentityFromContext(ctx), req.toCompany())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// uploadLogoHandler accepts a multipart form with the image in the "logo" field.
func uploadLogoHandler(svc *service.CompanyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/empresa/logo")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, service.MaxLogoBytes+multipartOverhead)
		file, header, err := r.FormFile("logo")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				handleServiceError(w, &domain.ErrValidation{Field: "logo", Message: "arquivo maior que 5 MB"}, logger)
				return
			}
			handleServiceError(w, &domain.ErrValidation{Field: "logo", Message: "arquivo não enviado"}, logger)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, service.MaxLogoBytes+1))
		if err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "logo", Message: "falha ao ler arquivo"}, logger)
			return
		}
		span.SetAttributes(
			attribute.String("logo.filename", header.Filename),
			attribute.Int("logo.size", len(data)),
		)

		c, err := svc.UploadLogo(ctx, IdentityFromContext(ctx), header.Filename, data)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}
