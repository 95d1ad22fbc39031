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
	RecommendationsTotal *prometheus.CounterVec
	RecommendLatency     prometheus.Histogram
	InteractionScanPass  *prometheus.HistogramVec
	NeighborUsersCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CatalogSize          prometheus.Gauge
	LikedListSize        prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all Prometheus collectors and registers them with the default
// registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with the given
// registerer. Tests pass a private registry to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
				Help: "Total title searches by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Title search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		RecommendationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recommendations_total",
				Help: "Total recommendation requests by outcome (ok, empty_liked, error).",
			},
			[]string{"outcome"},
		),
		RecommendLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recommend_latency_seconds",
				Help:    "End-to-end recommendation latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300, 600},
			},
		),
		InteractionScanPass: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interaction_scan_pass_seconds",
				Help:    "Duration of each full pass over the interaction log.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300, 600},
			},
			[]string{"pass"},
		),
		NeighborUsersCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "neighbor_users_count",
				Help:    "Number of neighbor users surviving the overlap threshold.",
				Buckets: []float64{0, 1, 5, 15, 50, 150, 500, 1500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		CatalogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_books_total",
				Help: "Number of books admitted into the loaded catalog.",
			},
		),
		LikedListSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "liked_books_total",
				Help: "Number of books in the active liked list.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.RecommendationsTotal,
		m.RecommendLatency,
		m.InteractionScanPass,
		m.NeighborUsersCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogSize,
		m.LikedListSize,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
