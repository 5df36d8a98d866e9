package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"go.uber.org/zap"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency. Optional checks only degrade health;
// required ones also fail readiness.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

func runChecks(ctx context.Context, checks []HealthCheck, logger *zap.Logger) []domain.ServiceHealth {
	out := make([]domain.ServiceHealth, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(cctx)
			status := "healthy"
			if err != nil {
				logger.Warn("health check failed", zap.String("check", c.Name), zap.Error(err))
				status = "unhealthy"
				if c.Optional {
					status = "degraded"
				}
			}
			out[i] = domain.ServiceHealth{
				Name:        c.Name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: time.Now().Format(time.RFC3339),
			}
		}(i, c)
	}
	wg.Wait()
	return out
}

func overall(services []domain.ServiceHealth) string {
	status := "healthy"
	for _, s := range services {
		if s.Status == "unhealthy" {
			return "unhealthy"
		}
		if s.Status == "degraded" {
			status = "degraded"
		}
	}
	return status
}

func healthzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := append([]domain.ServiceHealth{{
			Name:        "propostas-api",
			Status:      "healthy",
			LastChecked: time.Now().Format(time.RFC3339),
		}}, runChecks(r.Context(), checks, logger)...)

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall(services),
			Services: services,
		})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := runChecks(r.Context(), checks, logger)
		if overall(services) == "unhealthy" {
			writeJSON(w, http.StatusServiceUnavailable, domain.HealthStatus{Status: "not_ready", Services: services})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
