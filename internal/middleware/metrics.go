package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

const namespace = "vulngate"

// Metrics holds the Prometheus collectors of one server. Each Metrics owns its
// registry so routers built in tests do not share counters.
type Metrics struct {
	Registry *prometheus.Registry

	// labels: result=success|failure
	Requests         *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge

	// labels: method, code
	RequestDuration *prometheus.HistogramVec

	// labels: result=succeeded|failed
	Scans        *prometheus.CounterVec
	ScansRunning prometheus.Gauge

	// labels: outcome=pass|fail
	Gates         *prometheus.CounterVec
	GatesDegraded prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by result. A failed gate (422) is a successful request.",
		}, []string{"result"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Background scan jobs finished, by result.",
		}, []string{"result"}),
		ScansRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scans_running",
			Help:      "Background scan jobs in progress.",
		}),
		Gates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_evaluations_total",
			Help:      "Gate decisions, by outcome.",
		}, []string{"outcome"}),
		GatesDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_evaluations_degraded_total",
			Help:      "Gate decisions where some scanner output could not be parsed.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.RequestsInFlight, m.RequestDuration,
		m.Scans, m.ScansRunning,
		m.Gates, m.GatesDegraded,
	)
	return m
}

// ScanStarted / ScanFinished track background scan jobs
func (m *Metrics) ScanStarted() {
	m.ScansRunning.Inc()
}

func (m *Metrics) ScanFinished(err error) {
	m.ScansRunning.Dec()
	if err != nil {
		m.Scans.WithLabelValues("failed").Inc()
		return
	}
	m.Scans.WithLabelValues("succeeded").Inc()
}

// RecordGate counts one gate decision
func (m *Metrics) RecordGate(outcome gate.Outcome, degraded bool) {
	m.Gates.WithLabelValues(string(outcome)).Inc()
	if degraded {
		m.GatesDegraded.Inc()
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		// 422 = gate fail, bukan request gagal
		result := "failure"
		if wrapped.statusCode < 400 || wrapped.statusCode == http.StatusUnprocessableEntity {
			result = "success"
		}
		m.Requests.WithLabelValues(result).Inc()
		m.RequestDuration.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
