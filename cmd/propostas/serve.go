package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/config"
	"github.com/boddenberg/proposta-facil-go/internal/handler"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

func runServe(ctx context.Context, envFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Load .env first; real environment variables take precedence.
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	imported := 0
	if path := os.Getenv("SSM_PARAMETER_PATH"); path != "" {
		client, err := config.NewSSMClient(ctx, os.Getenv("AWS_REGION"))
		if err != nil {
			return fmt.Errorf("ssm client: %w", err)
		}
		if imported, err = config.ImportSSM(ctx, client, path); err != nil {
			return fmt.Errorf("ssm import: %w", err)
		}
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
	defer logger.Sync()

	if imported > 0 {
		logger.Info("parameters imported from SSM", zap.Int("count", imported))
	}

	// ============================================================
	// OpenTelemetry Tracing
	// ============================================================
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	a, err := buildApp(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer a.close()

	router := handler.NewRouter(a.services, handler.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Checks:         a.checks,
	}, metrics, logger)

	// ============================================================
	// HTTP Server
	// ============================================================
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting propostas server",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.StoreBackend),
			zap.String("blobs", cfg.BlobBackend),
			zap.String("cache", cfg.CacheBackend),
			zap.Bool("guest_mode", cfg.GuestEnabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exited gracefully")
	return nil
}
