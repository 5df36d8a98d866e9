package handler

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Pré-visualização
// ============================================================

// previewDraftHandler composes an unsaved draft sent by the editor.
func previewDraftHandler(svc *service.PreviewService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/propostas/preview")
		defer span.End()

		var draft domain.Draft
		if err := decodeJSON(w, r, &draft); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		doc, err := svc.PreviewDraft(ctx, IdentityFromContext(ctx), draft, queryBool(r, "full_page"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// previewHandler renders a saved proposal as document JSON, HTML or Markdown.
func previewHandler(svc *service.PreviewService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/propostas/{id}/preview")
		defer span.End()

		id := chi.URLParam(r, "id")
		format := strings.ToLower(r.URL.Query().Get("format"))
		fullPage := queryBool(r, "full_page")
		span.SetAttributes(
			attribute.String("proposal.id", id),
			attribute.String("format", format),
		)

		identity := IdentityFromContext(ctx)
		switch format {
		case "", "json":
			doc, err := svc.Preview(ctx, identity, id, fullPage)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, doc)
		case "html":
			page, err := svc.RenderHTML(ctx, identity, id, fullPage)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write(page)
		case "md", "markdown":
			md, err := svc.RenderMarkdown(ctx, identity, id)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(md))
		default:
			writeError(w, http.StatusBadRequest, "format deve ser json, html ou md")
		}
	}
}

// ============================================================
// Exportação
// ============================================================

func exportHandler(svc *service.PreviewService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/propostas/{id}/export")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("proposal.id", id))

		exp, err := svc.Export(ctx, IdentityFromContext(ctx), id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("ETag", exp.ETag)
		w.Header().Set("Cache-Control", "private, no-cache")
		if etagMatches(r.Header.Get("If-None-Match"), exp.ETag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", exp.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
		w.WriteHeader(http.StatusOK)
		w.Write(exp.Data)
	}
}

func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, v := range strings.Split(header, ",") {
		v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "W/"))
		if v == "*" || v == etag {
			return true
		}
	}
	return false
}
