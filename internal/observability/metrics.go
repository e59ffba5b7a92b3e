// Package observability holds the Prometheus metrics of the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/testforge/smartfill/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Pipeline metrics
	AnalysesTotal        *prometheus.CounterVec
	FieldsClassified     *prometheus.HistogramVec
	FillFieldsProcessed  prometheus.Counter
	FillFieldsMatched    prometheus.Counter
	FallbacksTotal       *prometheus.CounterVec
	InjectionFieldsTotal *prometheus.CounterVec

	// Model provider metrics
	ModelRequestsTotal   *prometheus.CounterVec
	ModelRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every metric on a fresh registry so tests and
// multiple instances never collide on the global one.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "smartfill"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		// Pipeline metrics
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of page analyses",
			},
			[]string{"operation", "source", "status"},
		),
		FieldsClassified: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fields_classified",
				Help:      "Number of classified fields per analysis",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"source"},
		),
		FillFieldsProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fill_fields_processed_total",
				Help:      "Total number of fields considered for filling",
			},
		),
		FillFieldsMatched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fill_fields_matched_total",
				Help:      "Total number of fields that received a value",
			},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallbacks_total",
				Help:      "Total number of remote failures answered by the local path",
			},
			[]string{"operation", "code"},
		),
		InjectionFieldsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "injection_fields_total",
				Help:      "Total number of fields written into pages",
			},
			[]string{"status"},
		),

		// Model provider metrics
		ModelRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_requests_total",
				Help:      "Total number of model API requests",
			},
			[]string{"provider", "status"},
		),
		ModelRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_request_duration_seconds",
				Help:      "Model API request duration in seconds",
				Buckets:   []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider"},
		),
	}

	return m
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordModelRequest matches llm.Observer and is installed on the provider factory.
func (m *Metrics) RecordModelRequest(provider domain.ModelProvider, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = domain.GetErrorCode(err)
	}
	m.ModelRequestsTotal.WithLabelValues(string(provider), status).Inc()
	m.ModelRequestDuration.WithLabelValues(string(provider)).Observe(duration.Seconds())
}

// RecordAnalysis records one analysis outcome.
func (m *Metrics) RecordAnalysis(operation string, result *domain.AnalysisResult, err error) {
	if err != nil {
		m.AnalysesTotal.WithLabelValues(operation, "none", domain.GetErrorCode(err)).Inc()
		return
	}
	m.AnalysesTotal.WithLabelValues(operation, string(result.Source), "success").Inc()
	m.FieldsClassified.WithLabelValues(string(result.Source)).Observe(float64(result.TotalFields))
}

// RecordFill records fill map coverage.
func (m *Metrics) RecordFill(summary domain.FillSummary) {
	m.FillFieldsProcessed.Add(float64(summary.FieldsProcessed))
	m.FillFieldsMatched.Add(float64(summary.FieldsMatched))
}

// RecordFallback records a remote failure answered locally.
func (m *Metrics) RecordFallback(operation string, cause error) {
	m.FallbacksTotal.WithLabelValues(operation, domain.GetErrorCode(cause)).Inc()
}

// RecordInjection records per-field injection outcomes.
func (m *Metrics) RecordInjection(report domain.FillReport) {
	m.InjectionFieldsTotal.WithLabelValues(string(domain.FieldSuccess)).Add(float64(report.SuccessCount))
	m.InjectionFieldsTotal.WithLabelValues(string(domain.FieldFailed)).Add(float64(report.FailedCount))
}

// HTTPMiddleware returns middleware for recording HTTP metrics. Paths are
// recorded by route pattern to keep label cardinality bounded.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		m.RecordHTTPRequest(r.Method, path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
