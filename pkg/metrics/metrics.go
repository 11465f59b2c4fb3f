// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	IndexCacheHitsTotal  prometheus.Counter
	IndexCacheMissTotal  prometheus.Counter
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	PagesIndexed         *prometheus.GaugeVec
	PagesSkippedTotal    prometheus.Counter
	PageSavesTotal       *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	DocumentsImported    *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Passing nil uses
// the global default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total page searches by scope and result type (hit, zero_result).",
			},
			[]string{"scope", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Page search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"scope"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of pages returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		IndexCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_cache_hits_total",
				Help: "Index lookups served from an already built index.",
			},
		),
		IndexCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_cache_misses_total",
				Help: "Index lookups that required a build.",
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_builds_total",
				Help: "Index builds by outcome (success, cancelled, error).",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Wall time of index builds.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		PagesIndexed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pages_indexed",
				Help: "Pages held by the current index of each collection.",
			},
			[]string{"collection"},
		),
		PagesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pages_skipped_total",
				Help: "Page documents skipped during builds because they failed to parse.",
			},
		),
		PageSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "page_saves_total",
				Help: "Page saves by outcome (ok, conflict, error).",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		DocumentsImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_imported_total",
				Help: "Documents handled by ingestion by outcome (page, auxiliary, rejected).",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.IndexCacheHitsTotal,
		m.IndexCacheMissTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.PagesIndexed,
		m.PagesSkippedTotal,
		m.PageSavesTotal,
		m.CircuitBreakerState,
		m.DocumentsImported,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
