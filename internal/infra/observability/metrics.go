package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	exports          *prometheus.CounterVec
	colorExtractions *prometheus.CounterVec
	documents        *prometheus.CounterVec
	exportsInFlight  prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "propostas_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propostas_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propostas_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propostas_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propostas_exports_total",
				Help: "PDF exports by result.",
			},
			[]string{"result"},
		),
		colorExtractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propostas_color_extractions_total",
				Help: "Logo color extractions by result.",
			},
			[]string{"result"},
		),
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propostas_documents_rendered_total",
				Help: "Composed documents by render mode.",
			},
			[]string{"mode"},
		),
		exportsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "propostas_exports_in_flight",
				Help: "PDF exports currently rasterizing.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrExport counts an export attempt ("ok", "cached", "error", "busy").
func (m *Metrics) IncrExport(result string) {
	m.exports.WithLabelValues(result).Inc()
}

// IncrColorExtraction counts a logo color extraction ("ok", "none").
func (m *Metrics) IncrColorExtraction(result string) {
	m.colorExtractions.WithLabelValues(result).Inc()
}

// IncrDocument counts a composed document by mode.
func (m *Metrics) IncrDocument(mode string) {
	m.documents.WithLabelValues(mode).Inc()
}

// SetExportsInFlight reports the bulkhead occupancy.
func (m *Metrics) SetExportsInFlight(n int) {
	m.exportsInFlight.Set(float64(n))
}

// Snapshot is a point-in-time view of the counters, used by /v1/metrics and tests.
type Snapshot struct {
	CacheHits        float64            `json:"cacheHits"`
	CacheMisses      float64            `json:"cacheMisses"`
	CacheHitRate     float64            `json:"cacheHitRate"`
	Exports          map[string]float64 `json:"exports"`
	ColorExtractions map[string]float64 `json:"colorExtractions"`
	Documents        map[string]float64 `json:"documents"`
}

// GetSnapshot gathers current counter values.
func (m *Metrics) GetSnapshot() *Snapshot {
	hits := getCounterValue(m.cacheHits, "pdf")
	misses := getCounterValue(m.cacheMisses, "pdf")

	rate := float64(0)
	if hits+misses > 0 {
		rate = hits / (hits + misses)
	}

	return &Snapshot{
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheHitRate:     rate,
		Exports:          counterValues(m.exports, "ok", "cached", "error", "busy"),
		ColorExtractions: counterValues(m.colorExtractions, "ok", "none"),
		Documents:        counterValues(m.documents, "live", "print"),
	}
}

func counterValues(cv *prometheus.CounterVec, labels ...string) map[string]float64 {
	out := make(map[string]float64, len(labels))
	for _, l := range labels {
		out[l] = getCounterValue(cv, l)
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
