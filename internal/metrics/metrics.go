// Package metrics provides Prometheus metrics for conversions and the API
// server.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FocuswithJustin/Rescribe/core/convert"
)

const namespace = "rescribe"

// Metrics holds all Prometheus metrics for Rescribe. It implements
// convert.Observer.
type Metrics struct {
	// Conversion metrics
	ConversionsTotal      *prometheus.CounterVec
	ConversionDuration    *prometheus.HistogramVec
	FidelityWarningsTotal *prometheus.CounterVec
	OutputBytes           *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     *prometheus.CounterVec

	// Job and WebSocket metrics
	JobsQueued       prometheus.Gauge
	WebSocketClients prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the metrics and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(reg)
	m.registry = reg
	return m
}

// NewWith registers the metrics on reg. reg may be prometheus.DefaultRegisterer.
func NewWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.ConversionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total number of conversions by source format, target format and status",
		},
		[]string{"from", "to", "status"},
	)

	m.ConversionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of successful conversions in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"from", "to"},
	)

	m.FidelityWarningsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fidelity_warnings_total",
			Help:      "Total number of fidelity warnings by severity and category",
		},
		[]string{"severity", "category"},
	)

	m.OutputBytes = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_output_bytes",
			Help:      "Size of converted output in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"to"},
	)

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.HTTPRequestsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.RateLimitedTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by client kind (key or ip)",
		},
		[]string{"client"},
	)

	m.JobsQueued = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_pending",
			Help:      "Number of asynchronous conversion jobs not yet finished",
		},
	)

	m.WebSocketClients = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		},
	)

	return m
}

// Observe implements convert.Observer.
func (m *Metrics) Observe(e convert.Event) {
	switch {
	case e.Failed():
		m.ConversionsTotal.WithLabelValues(e.From, e.To, "error_"+e.Stage).Inc()
	case e.Stage == convert.StageDone:
		m.ConversionsTotal.WithLabelValues(e.From, e.To, "success").Inc()
		m.ConversionDuration.WithLabelValues(e.From, e.To).Observe(e.Duration.Seconds())
		for _, w := range e.Warnings {
			category := "other"
			if w.Kind != nil {
				category = w.Kind.Category()
			}
			m.FidelityWarningsTotal.WithLabelValues(w.Severity.String(), category).Inc()
		}
	}
}

// RecordOutput records the size of a converted document.
func (m *Metrics) RecordOutput(to string, size int) {
	m.OutputBytes.WithLabelValues(to).Observe(float64(size))
}

// RecordHTTPRequest records a finished HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the metrics in the Prometheus exposition format. Metrics
// created with NewWith are served from the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests and their latency. route labels the handler
// so that path parameters do not create new series.
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.RecordHTTPRequest(r.Method, route, sw.code, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack implements http.Hijacker for WebSocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}
