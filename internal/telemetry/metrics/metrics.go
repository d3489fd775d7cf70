// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

// Metrics owns a registry and every gateway collector. Construct once per process (or per test).
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	providerFetches  *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	anomalies *prometheus.CounterVec

	auditWriteFailures prometheus.Counter
	securityViolations prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache reads that returned a valid entry.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache reads that found no valid entry.",
		}, []string{"cache"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Expired entries removed on read or by the janitor.",
		}, []string{"cache"}),
		providerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "fetches_total",
			Help: "Provider fetch results by outcome (live, cached, zero).",
		}, []string{"provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "provider", Name: "fetch_duration_seconds",
			Help:    "Latency of live provider fetches.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "anomaly", Name: "detected_total",
			Help: "Anomalies produced by detection runs.",
		}, []string{"type", "severity"}),
		auditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audit", Name: "write_failures_total",
			Help: "Audit records that could not be persisted.",
		}),
		securityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "security", Name: "tenant_mismatch_total",
			Help: "Requests rejected because the session tenant did not match the routed tenant.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheHits, m.cacheMisses, m.cacheEvictions,
		m.providerFetches, m.providerDuration,
		m.anomalies,
		m.auditWriteFailures, m.securityViolations,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hit counts a cache hit. Metrics satisfies cache.Recorder.
func (m *Metrics) Hit(cache string) { m.cacheHits.WithLabelValues(cache).Inc() }

// Miss counts a cache miss.
func (m *Metrics) Miss(cache string) { m.cacheMisses.WithLabelValues(cache).Inc() }

// Evict counts n evictions.
func (m *Metrics) Evict(cache string, n int) {
	m.cacheEvictions.WithLabelValues(cache).Add(float64(n))
}

// ProviderFetch records the outcome of an orchestrated fetch and, for live attempts, its latency.
func (m *Metrics) ProviderFetch(provider, outcome string, live time.Duration) {
	m.providerFetches.WithLabelValues(provider, outcome).Inc()
	if live > 0 {
		m.providerDuration.WithLabelValues(provider).Observe(live.Seconds())
	}
}

// AnomalyDetected counts one anomaly.
func (m *Metrics) AnomalyDetected(kind, severity string) {
	m.anomalies.WithLabelValues(kind, severity).Inc()
}

// AuditWriteFailed counts a failed audit write.
func (m *Metrics) AuditWriteFailed() { m.auditWriteFailures.Inc() }

// SecurityViolation counts a tenant mismatch.
func (m *Metrics) SecurityViolation() { m.securityViolations.Inc() }

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
