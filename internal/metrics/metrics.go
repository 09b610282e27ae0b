package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seo_router"

// Metrics holds the router's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	metadataFetchTotal  *prometheus.CounterVec
	metadataFetchTime   prometheus.Histogram
	upstreamErrorsTotal *prometheus.CounterVec
	reloadsTotal        *prometheus.CounterVec
}

// New registers the seo-router collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled, by classification.",
		}, []string{"kind"}),
		metadataFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_fetch_total",
			Help:      "Metadata endpoint calls, by result.",
		}, []string{"result"}),
		metadataFetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "metadata_fetch_duration_seconds",
			Help:      "Latency of metadata endpoint calls.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		upstreamErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed upstream calls, by stage.",
		}, []string{"stage"}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reload attempts, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.requestsTotal,
		m.metadataFetchTotal,
		m.metadataFetchTime,
		m.upstreamErrorsTotal,
		m.reloadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest counts one request of the given kind.
func (m *Metrics) ObserveRequest(kind string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(kind).Inc()
}

// ObserveMetadataFetch records a metadata call outcome and latency.
func (m *Metrics) ObserveMetadataFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.metadataFetchTotal.WithLabelValues(result).Inc()
	m.metadataFetchTime.Observe(d.Seconds())
}

// ObserveUpstreamError counts a failure at stage.
func (m *Metrics) ObserveUpstreamError(stage string) {
	if m == nil {
		return
	}
	m.upstreamErrorsTotal.WithLabelValues(stage).Inc()
}

// ObserveReload counts a config reload attempt.
func (m *Metrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.reloadsTotal.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
