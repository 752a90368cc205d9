// Package metrics exposes the pod's Prometheus registry: HTTP status-class
// counters, latency, live SSE connections, and cumulative token usage. It is
// deliberately narrower than a general-purpose instrumentation package —
// just the counters named in the External Interfaces route table — rather
// than a metric per subsystem.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the /metrics route serves.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsByClass *prometheus.CounterVec
	httpRequestDuration prometheus.Histogram

	sseConnections prometheus.Gauge

	promptTokens     prometheus.Counter
	completionTokens prometheus.Counter
}

// New creates a Metrics instance with its own registry, so the /metrics
// route never exposes Go runtime collectors registered against the default
// global registry by some other package.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsByClass = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumeforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by status class.",
		},
		[]string{"class"},
	)
	m.httpRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resumeforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	m.sseConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "resumeforge",
			Subsystem: "sse",
			Name:      "connections",
			Help:      "Currently open SSE stream connections.",
		},
	)
	m.promptTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resumeforge",
			Subsystem: "llm",
			Name:      "prompt_tokens_total",
			Help:      "Cumulative prompt tokens spent across all sessions.",
		},
	)
	m.completionTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resumeforge",
			Subsystem: "llm",
			Name:      "completion_tokens_total",
			Help:      "Cumulative completion tokens spent across all sessions.",
		},
	)

	m.registry.MustRegister(
		m.httpRequestsByClass,
		m.httpRequestDuration,
		m.sseConnections,
		m.promptTokens,
		m.completionTokens,
	)
	return m
}

// statusClass buckets a status code into the labels the route table names:
// the 2xx/3xx/4xx/5xx classes plus the two status codes called out on their
// own (429 and 503), since both matter operationally beyond "it's a 4xx/5xx".
func statusClass(code int) string {
	switch code {
	case http.StatusTooManyRequests:
		return "429"
	case http.StatusServiceUnavailable:
		return "503"
	}
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// RecordRequest records one completed HTTP request's status class and
// latency.
func (m *Metrics) RecordRequest(status int, duration time.Duration) {
	m.httpRequestsByClass.WithLabelValues(statusClass(status)).Inc()
	m.httpRequestDuration.Observe(duration.Seconds())
}

// IncSSEConnections records a new stream session being opened.
func (m *Metrics) IncSSEConnections() {
	m.sseConnections.Inc()
}

// DecSSEConnections records a stream session closing.
func (m *Metrics) DecSSEConnections() {
	m.sseConnections.Dec()
}

// AddTokenUsage accumulates prompt/completion token counts, called once per
// completed agent execution.
func (m *Metrics) AddTokenUsage(promptTokens, completionTokens int64) {
	if promptTokens > 0 {
		m.promptTokens.Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.completionTokens.Add(float64(completionTokens))
	}
}

// Handler returns the Prometheus exposition HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
