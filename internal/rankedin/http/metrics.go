package http

import (
	"fmt"
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private Prometheus registry for the API.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	contributions *prometheus.CounterVec
	badges        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rankedin",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint, method and status code.",
		}, []string{"endpoint", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rankedin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rankedin",
			Name:      "contributions_total",
			Help:      "Contribution attempts by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rankedin",
			Name:      "badges_served_total",
			Help:      "Badges served by format.",
		}, []string{"format"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.contributions, m.badges,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() stdhttp.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordContribution counts one pipeline run. outcome is derived from err.
func (m *Metrics) RecordContribution(kind string, degraded bool, err error) {
	outcome := "created"
	switch {
	case err != nil:
		_, code := classify(err)
		outcome = map[string]string{
			codeBadRequest: "bad_request",
			codeNotFound:   "not_found",
			codeConflict:   "conflict",
			codeInternal:   "error",
		}[code]
	case degraded:
		outcome = "degraded"
	}
	m.contributions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordBadge(format string) { m.badges.WithLabelValues(format).Inc() }

// Middleware records request count and latency under endpoint.
func (m *Metrics) Middleware(endpoint string, next stdhttp.HandlerFunc) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: stdhttp.StatusOK}
		next.ServeHTTP(wrapped, r)
		m.requests.WithLabelValues(endpoint, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.duration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	stdhttp.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
