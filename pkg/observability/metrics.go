// Package observability exposes the Prometheus metrics of the search
// pipeline. Metrics are first-class values owned by whoever constructs
// them, not package globals, so tests can build isolated registries.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every pipeline counter and histogram behind one
// registry.
type Metrics struct {
	registry *prometheus.Registry

	SearchesTotal       *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	SpaceSearchDuration *prometheus.HistogramVec
	SourceFailures      *prometheus.CounterVec
	DuplicatesRemoved   prometheus.Counter
	CacheHits           *prometheus.CounterVec
	ResultsReturned     prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tooldex_searches_total",
			Help: "Search requests by terminal status.",
		}, []string{"status"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tooldex_search_duration_seconds",
			Help:    "End-to-end search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		SpaceSearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tooldex_space_search_duration_seconds",
			Help:    "Per-vector-space search latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"space"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tooldex_source_failures_total",
			Help: "Per-source failures inside otherwise successful requests.",
		}, []string{"source"}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tooldex_duplicates_removed_total",
			Help: "Results folded away by duplicate detection.",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tooldex_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		ResultsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tooldex_results_returned",
			Help:    "Result-list sizes of successful searches.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}),
	}

	registry.MustRegister(
		m.SearchesTotal,
		m.SearchDuration,
		m.SpaceSearchDuration,
		m.SourceFailures,
		m.DuplicatesRemoved,
		m.CacheHits,
		m.ResultsReturned,
	)
	return m
}

// ObserveSearch records one finished request.
func (m *Metrics) ObserveSearch(status string, elapsed time.Duration, results int) {
	m.SearchesTotal.WithLabelValues(status).Inc()
	m.SearchDuration.Observe(elapsed.Seconds())
	if status == "ok" || status == "partial" {
		m.ResultsReturned.Observe(float64(results))
	}
}

// Handler serves this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
