// Package metrics exposes modsync counters and histograms to Prometheus.
//
// Metrics collected:
//   - modsync_refreshes_total: refreshes by outcome
//   - modsync_refresh_duration_seconds: refresh pipeline duration
//   - modsync_resolutions_total: mods resolved by method
//   - modsync_catalog_requests_total: catalog API calls by operation and outcome
//   - modsync_updates_total: update attempts by outcome
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackwell-systems/modsync/internal/mods"
)

const namespace = "modsync"

// Metrics holds the registered collectors.
type Metrics struct {
	registry        *prometheus.Registry
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	resolutions     *prometheus.CounterVec
	catalogRequests *prometheus.CounterVec
	updates         *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of refresh requests by outcome",
		}, []string{"outcome"}),

		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh pipelines in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),

		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of mods resolved by method",
		}, []string{"method"}),

		catalogRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Total number of CurseForge API requests by operation and outcome",
		}, []string{"op", "outcome"}),

		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Total number of mod update attempts by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RefreshDone records a finished refresh request. Skipped requests do
// not contribute to the duration histogram.
func (m *Metrics) RefreshDone(outcome string, d time.Duration) {
	m.refreshes.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		m.refreshDuration.Observe(d.Seconds())
	}
}

// Resolved records one resolution. Fuzzy methods share one label.
func (m *Metrics) Resolved(method mods.Method) {
	label := string(method)
	if method.IsFuzzy() {
		label = "fuzzy"
	}
	m.resolutions.WithLabelValues(label).Inc()
}

// CatalogRequest records one catalog API call. It matches catalog.Observer.
func (m *Metrics) CatalogRequest(op string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.catalogRequests.WithLabelValues(op, outcome).Inc()
}

// UpdateDone records one update attempt.
func (m *Metrics) UpdateDone(outcome string) {
	m.updates.WithLabelValues(outcome).Inc()
}
