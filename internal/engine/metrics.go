package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scrypster/warmconnector/internal/cache"
)

// Metrics are the Prometheus collectors fed by the performance monitor and
// the resolver.
type Metrics struct {
	queryDuration  *prometheus.HistogramVec
	queriesTotal   *prometheus.CounterVec
	queryErrors    *prometheus.CounterVec
	searchesTotal  *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warmconnector_store_query_duration_seconds",
			Help:    "Store query duration in seconds by operation",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"operation"}),

		queriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warmconnector_store_queries_total",
			Help: "Store queries by operation and whether they were served from cache",
		}, []string{"operation", "cache_hit"}),

		queryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warmconnector_store_query_errors_total",
			Help: "Failed store queries by operation",
		}, []string{"operation"}),

		searchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warmconnector_searches_total",
			Help: "Connection searches by mode and result source",
		}, []string{"mode", "source"}),

		searchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warmconnector_search_duration_seconds",
			Help:    "Connection search duration in seconds by mode",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13), // 1ms to ~4s
		}, []string{"mode"}),
	}
}

// RegisterCacheGauges exposes the size of every named cache as a gauge.
func RegisterCacheGauges(reg prometheus.Registerer, caches *cache.Registry) {
	f := promauto.With(reg)
	for _, st := range caches.Stats() {
		c := caches.Cache(st.Name)
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "warmconnector_cache_entries",
			Help:        "Entries currently held by a named cache",
			ConstLabels: prometheus.Labels{"cache": string(st.Name)},
		}, func() float64 { return float64(c.Len()) })
	}
}

func (m *Metrics) observeQuery(op string, qm QueryMetric, failed bool) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(op).Observe(qm.QueryTime.Seconds())
	hit := "false"
	if qm.CacheHit {
		hit = "true"
	}
	m.queriesTotal.WithLabelValues(op, hit).Inc()
	if failed {
		m.queryErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) observeSearch(mode SearchMode, source Source, seconds float64) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(string(mode), string(source)).Inc()
	m.searchDuration.WithLabelValues(string(mode)).Observe(seconds)
}
