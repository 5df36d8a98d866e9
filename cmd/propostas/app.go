package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/config"
	"github.com/boddenberg/proposta-facil-go/internal/handler"
	"github.com/boddenberg/proposta-facil-go/internal/infra/cache"
	"github.com/boddenberg/proposta-facil-go/internal/infra/client"
	"github.com/boddenberg/proposta-facil-go/internal/infra/color"
	"github.com/boddenberg/proposta-facil-go/internal/infra/events"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/infra/pdf"
	"github.com/boddenberg/proposta-facil-go/internal/infra/postgres"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"
	"github.com/boddenberg/proposta-facil-go/internal/infra/s3"
	"github.com/boddenberg/proposta-facil-go/internal/infra/sqlite"
	"github.com/boddenberg/proposta-facil-go/internal/infra/supabase"
	"github.com/boddenberg/proposta-facil-go/internal/port"
	"github.com/boddenberg/proposta-facil-go/internal/render"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"go.uber.org/zap"
)

// app is the wired dependency graph of the API.
type app struct {
	services handler.Services
	checks   []handler.HealthCheck
	closers  []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp connects the configured backends and assembles the services.
// On error every resource opened so far is released.
func buildApp(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	locale, err := render.NewLocale(cfg.Locale, cfg.CurrencySymbol, cfg.DateLayout, cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("locale: %w", err)
	}

	// ============================================================
	// Resilience
	// ============================================================
	resCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var supabaseClient *supabase.Client
	if cfg.SupabaseURL != "" {
		supabaseClient = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resCfg,
			logger,
		)
	}

	// ============================================================
	// Stores and identity
	// ============================================================
	var (
		proposals port.ProposalStore
		companies port.CompanyStore
		provider  port.IdentityProvider
		verifier  port.TokenVerifier
	)

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		proposals, companies = supabaseClient, supabaseClient
		provider = supabase.NewAuth(supabaseClient)
		if cfg.SupabaseJWKSURL != "" {
			v, err := service.NewJWKSVerifier(ctx, cfg.SupabaseJWKSURL)
			if err != nil {
				return nil, fmt.Errorf("jwks: %w", err)
			}
			verifier = v
		} else {
			verifier = service.NewHS256Verifier(cfg.SupabaseJWTSecret)
		}
		a.checks = append(a.checks, handler.HealthCheck{Name: "supabase", Check: supabaseClient.Ping})

	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		proposals, companies = store, store
		local := service.NewLocalIdentity(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		provider, verifier = local, local
		a.checks = append(a.checks, handler.HealthCheck{Name: "postgres", Check: store.Ping})

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("sqlite close failed", zap.Error(err))
			}
		})
		proposals, companies = store, store
		local := service.NewLocalIdentity(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
		provider, verifier = local, local
		a.checks = append(a.checks, handler.HealthCheck{Name: "sqlite", Check: store.Ping})
	}

	// ============================================================
	// Logo storage
	// ============================================================
	var blobs port.BlobStore
	switch cfg.BlobBackend {
	case config.BackendSupabase:
		blobs = supabase.NewStorage(supabaseClient, cfg.LogoBucket)
	case config.BackendS3:
		store, err := s3.New(ctx, s3.Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Prefix:        cfg.S3Prefix,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		blobs = store
	}

	// ============================================================
	// Events
	// ============================================================
	var publisher port.EventPublisher = events.Noop{}
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.closers = append(a.closers, nc.Close)
		publisher = nc
		a.checks = append(a.checks, handler.HealthCheck{Name: "nats", Check: nc.Ping, Optional: true})
	}

	// ============================================================
	// Export cache
	// ============================================================
	var exports port.Cache[[]byte]
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rc := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "propostas:pdf:",
			TTL:      cfg.CacheTTL,
		}, logger)
		a.closers = append(a.closers, func() {
			if err := rc.Close(); err != nil {
				logger.Warn("redis close failed", zap.Error(err))
			}
		})
		exports = rc
		a.checks = append(a.checks, handler.HealthCheck{Name: "redis", Check: rc.Ping, Optional: true})
	default:
		mc := cache.NewBounded[[]byte](cfg.CacheTTL, cfg.CacheMaxEntries)
		a.closers = append(a.closers, mc.Close)
		exports = mc
	}

	var rasterizer port.DocumentRasterizer = pdf.Noop{}
	if cfg.PDFExportEnabled {
		rasterizer = pdf.New(logger)
	}

	// ============================================================
	// Services
	// ============================================================
	a.services = handler.Services{
		Proposals: service.NewProposalService(proposals, publisher, locale, metrics, logger),
		Preview: service.NewPreviewService(service.PreviewDeps{
			Proposals:  proposals,
			Companies:  companies,
			Rasterizer: rasterizer,
			Assets:     client.NewAssetClient(httpClient, resilience.NewCircuitBreaker("assets"), resCfg, cfg.AssetMaxBytes),
			Cache:      exports,
			Bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrentExports),
			Locale:     locale,
		}, metrics, logger),
		Company: service.NewCompanyService(companies, blobs, color.NewExtractor(), metrics, logger),
		Auth: service.NewAuthService(provider, verifier, service.AuthConfig{
			GuestEnabled: cfg.GuestEnabled,
			GuestSecret:  cfg.GuestSecret,
			GuestTTL:     cfg.GuestTTL,
		}, logger),
	}
	return a, nil
}
