package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the dashboard's prometheus collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	panelRenders  *prometheus.CounterVec
	renderSeconds *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
}

// NewMetrics registers the dashboard collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		panelRenders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pmpm_panel_renders_total",
			Help: "Panel and trend renders by outcome",
		}, []string{"panel", "outcome"}),
		renderSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pmpm_panel_render_seconds",
			Help:    "Time spent rendering a panel",
			Buckets: prometheus.DefBuckets,
		}, []string{"panel"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pmpm_snapshot_cache_lookups_total",
			Help: "Snapshot cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveRender records one render attempt. Only successful renders are timed.
func (m *Metrics) ObserveRender(name string, err error, elapsed time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		if toAPIError(err).StatusCode < http.StatusInternalServerError {
			outcome = OutcomeRejected
		}
	}
	m.panelRenders.WithLabelValues(name, outcome).Inc()
	if err == nil {
		m.renderSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// ObserveCacheLookup matches dataset.LookupObserver.
func (m *Metrics) ObserveCacheLookup(_ string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
