package handler

import (
	"net/http"

	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups the application services the router exposes. A nil
// service turns its routes into 503 responses.
type Services struct {
	Proposals *service.ProposalService
	Preview   *service.PreviewService
	Company   *service.CompanyService
	Auth      *service.AuthService
}

// Options tunes the router.
type Options struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	// Checks are the dependencies reported by /healthz and gated by /readyz.
	Checks []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"Content-Disposition", "ETag"},
		MaxAge:         300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Checks, logger))
	r.Get("/readyz", readyzHandler(opts.Checks, logger))
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if svc.Auth == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "autenticação não configurada")
			}))
			return
		}

		// =============================================
		// Autenticação
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(svc.Auth, logger))
			r.Post("/register", authRegisterHandler(svc.Auth, logger))
			r.Post("/guest", authGuestHandler(svc.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(IdentityMiddleware(svc.Auth, logger))
				r.Post("/logout", authLogoutHandler(svc.Auth, logger))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(svc.Auth, logger))

			// =============================================
			// Dashboard & Propostas
			// =============================================
			if svc.Proposals != nil {
				r.Get("/dashboard", dashboardHandler(svc.Proposals, logger))
				r.Get("/propostas", listProposalsHandler(svc.Proposals, logger))
				r.Post("/propostas", createProposalHandler(svc.Proposals, logger))
				r.Get("/propostas/novo", newDraftHandler(svc.Proposals))
				r.Get("/propostas/{id}", getProposalHandler(svc.Proposals, logger))
				r.Put("/propostas/{id}", updateProposalHandler(svc.Proposals, logger))
				r.Delete("/propostas/{id}", deleteProposalHandler(svc.Proposals, logger))
				r.Patch("/propostas/{id}/status", updateStatusHandler(svc.Proposals, logger))
			}

			// =============================================
			// Pré-visualização & Exportação
			// =============================================
			if svc.Preview != nil {
				r.Post("/propostas/preview", previewDraftHandler(svc.Preview, logger))
				r.Get("/propostas/{id}/preview", previewHandler(svc.Preview, logger))
				r.Get("/propostas/{id}/export", exportHandler(svc.Preview, logger))
			}

			// =============================================
			// Empresa
			// =============================================
			if svc.Company != nil {
				r.Get("/empresa", getCompanyHandler(svc.Company, logger))
				r.Put("/empresa", saveCompanyHandler(svc.Company, logger))
				r.Post("/empresa/logo", uploadLogoHandler(svc.Company, logger))
			}
		})
	})

	return r
}
