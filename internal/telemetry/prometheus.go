package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics exposes serving-path counters and histograms on a
// dedicated registry, so tests can instantiate isolated collectors.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal         *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	searchResults       *prometheus.HistogramVec
	degradedTotal       prometheus.Counter
	zeroResultTotal     prometheus.Counter
	cacheHitTotal       prometheus.Counter
	cacheMissTotal      prometheus.Counter
	strategyDuration    *prometheus.HistogramVec
	strategyFailTotal   *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collector with its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partfuse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "partfuse",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by classification category and fusion mode.",
		},
		[]string{"category", "mode"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partfuse",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partfuse",
			Subsystem: "search",
			Name:      "fused_results",
			Help:      "Distribution of fused result counts per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
		[]string{"mode"},
	)
	degradedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "search",
			Name:      "degraded_total",
			Help:      "Total requests answered from a subset of their strategies.",
		},
	)
	zeroResultTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "search",
			Name:      "zero_result_total",
			Help:      "Total requests returning no results.",
		},
	)
	cacheHitTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total result cache hits.",
		},
	)
	cacheMissTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total result cache misses.",
		},
	)
	strategyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "partfuse",
			Subsystem: "strategy",
			Name:      "duration_seconds",
			Help:      "Retrieval call duration per strategy.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)
	strategyFailTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "partfuse",
			Subsystem: "strategy",
			Name:      "failures_total",
			Help:      "Total failed retrieval calls by strategy and failure kind.",
		},
		[]string{"strategy", "kind"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResults,
		degradedTotal,
		zeroResultTotal,
		cacheHitTotal,
		cacheMissTotal,
		strategyDuration,
		strategyFailTotal,
	)

	return &PrometheusMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		searchTotal:       searchTotal,
		searchDuration:    searchDuration,
		searchResults:     searchResults,
		degradedTotal:     degradedTotal,
		zeroResultTotal:   zeroResultTotal,
		cacheHitTotal:     cacheHitTotal,
		cacheMissTotal:    cacheMissTotal,
		strategyDuration:  strategyDuration,
		strategyFailTotal: strategyFailTotal,
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments request counts, duration, and in-flight gauge.
func (m *PrometheusMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path).
			Observe(time.Since(start).Seconds())
	})
}

// RecordSearch captures one completed search request.
func (m *PrometheusMetrics) RecordSearch(category, mode string, resultCount int, cacheHit, degraded bool, duration time.Duration) {
	if category == "" {
		category = "unknown"
	}
	m.searchTotal.WithLabelValues(category, mode).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.searchResults.WithLabelValues(mode).Observe(float64(resultCount))

	if degraded {
		m.degradedTotal.Inc()
	}
	if resultCount == 0 {
		m.zeroResultTotal.Inc()
	}
	if cacheHit {
		m.cacheHitTotal.Inc()
	} else {
		m.cacheMissTotal.Inc()
	}
}

// RecordStrategy captures one retrieval call.
func (m *PrometheusMetrics) RecordStrategy(strategy string, duration time.Duration, failureKind string) {
	m.strategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if failureKind != "" {
		m.strategyFailTotal.WithLabelValues(strategy, failureKind).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
