// Package metrics provides Prometheus instrumentation for the ledger client
// and the sandbox server.
//
// Collectors are registered on a caller-supplied registerer rather than the
// global default, so tests and the bench command get isolated registries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

// ClientMetrics records per-operation request counts and latencies.
// It satisfies ledger.Observer.
type ClientMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.SummaryVec
}

// NewClientMetrics registers the client collectors on reg.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	f := promauto.With(reg)
	return &ClientMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of ledger requests by operation and outcome",
		}, []string{"op", "outcome"}),

		latency: f.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  namespace,
			Subsystem:  "client",
			Name:       "request_duration_seconds",
			Help:       "Latency of ledger requests from dial to last body byte",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"op"}),
	}
}

// ObserveRequest records one settled request.
func (m *ClientMetrics) ObserveRequest(op, outcome string, d time.Duration) {
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

// ServerMetrics instruments the sandbox HTTP server.
type ServerMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	injected *prometheus.CounterVec
	limited  prometheus.Counter
	accounts prometheus.Gauge
}

// NewServerMetrics registers the sandbox collectors on reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	f := promauto.With(reg)
	return &ServerMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served by route and status code",
		}, []string{"method", "route", "code"}),

		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		injected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "injected_failures_total",
			Help:      "Total number of failures injected by the fault middleware",
		}, []string{"code"}),

		limited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),

		accounts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "accounts",
			Help:      "Number of accounts known to the sandbox ledger",
		}),
	}
}

// Middleware records request counts and durations labelled by chi route
// pattern. Unmatched requests are labelled "unmatched".
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// InjectedFailure records a failure produced by fault injection.
func (m *ServerMetrics) InjectedFailure(code int) {
	m.injected.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RateLimited records a request rejected by the rate limiter.
func (m *ServerMetrics) RateLimited() {
	m.limited.Inc()
}

// SetAccounts publishes the current account count.
func (m *ServerMetrics) SetAccounts(n int) {
	m.accounts.Set(float64(n))
}
