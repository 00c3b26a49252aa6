package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the authority.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics. mode is basic, session or token; outcome is a
	// taxonomy code or "ok".
	LoginsTotal      *prometheus.CounterVec
	ValidationsTotal *prometheus.CounterVec
	TokensIssued     *prometheus.CounterVec

	// Session registry metrics
	ActiveSessions       prometheus.Gauge
	SessionsSweptTotal   prometheus.Counter
	SessionSweepDuration prometheus.Histogram

	// Store metrics
	StoreLookupsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authward_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authward_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authward_logins_total",
				Help: "Login attempts by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authward_validations_total",
				Help: "Artifact validations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authward_tokens_issued_total",
				Help: "Signed tokens issued by kind",
			},
			[]string{"kind"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "authward_active_sessions",
				Help: "Live sessions currently held by the registry",
			},
		),
		SessionsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authward_sessions_swept_total",
				Help: "Expired sessions removed by the sweeper",
			},
		),
		SessionSweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authward_session_sweep_duration_seconds",
				Help:    "Sweep pass duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		StoreLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authward_store_lookups_total",
				Help: "Credential store lookups by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.ValidationsTotal,
		m.TokensIssued,
		m.ActiveSessions,
		m.SessionsSweptTotal,
		m.SessionSweepDuration,
		m.StoreLookupsTotal,
	)

	return m
}

// ObserveLogin records a login attempt. A nil err counts as "ok"; taxonomy
// errors count under their wire code.
func (m *Metrics) ObserveLogin(mode string, outcome string) {
	m.LoginsTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveValidation records an artifact validation.
func (m *Metrics) ObserveValidation(mode string, outcome string) {
	m.ValidationsTotal.WithLabelValues(mode, outcome).Inc()
}

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests. The route template, not
// the raw URL, should reach this middleware to keep label cardinality bounded;
// gorilla registers it before any path variables are expanded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint exposes the registry on /metrics.
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
