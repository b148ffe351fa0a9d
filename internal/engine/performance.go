package engine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/warmconnector/internal/cache"
)

// Monitor defaults.
const (
	DefaultWindowSize         = 100
	DefaultSlowQueryThreshold = 500 * time.Millisecond
	maxSlowQueries            = 50
)

// QueryMetric is one recorded operation.
type QueryMetric struct {
	QueryTime            time.Duration `json:"query_time"`
	ResultCount          int           `json:"result_count"`
	CacheHit             bool          `json:"cache_hit"`
	OptimizationsApplied []string      `json:"optimizations_applied,omitempty"`
	At                   time.Time     `json:"at"`
}

// SlowQuery is a recorded operation that exceeded the slow threshold.
type SlowQuery struct {
	Operation   string    `json:"operation"`
	QueryTimeMs float64   `json:"query_time_ms"`
	ResultCount int       `json:"result_count"`
	At          time.Time `json:"at"`
}

// OperationStats aggregates one operation's rolling window.
type OperationStats struct {
	Operation      string  `json:"operation"`
	Samples        int     `json:"samples"`
	AvgQueryTimeMs float64 `json:"avg_query_time_ms"`
	MaxQueryTimeMs float64 `json:"max_query_time_ms"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	AvgResultCount float64 `json:"avg_result_count"`
}

// PoolStats is a subset of sql.DBStats.
type PoolStats struct {
	MaxOpenConnections int     `json:"max_open_connections"`
	OpenConnections    int     `json:"open_connections"`
	InUse              int     `json:"in_use"`
	Idle               int     `json:"idle"`
	WaitCount          int64   `json:"wait_count"`
	WaitDurationMs     float64 `json:"wait_duration_ms"`
}

// PerformanceReport is the diagnostics snapshot served to operators.
type PerformanceReport struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	TotalSamples    int              `json:"total_samples"`
	AvgQueryTimeMs  float64          `json:"avg_query_time_ms"`
	CacheHitRate    float64          `json:"cache_hit_rate"`
	Operations      []OperationStats `json:"operations"`
	Caches          []cache.Stats    `json:"caches,omitempty"`
	Pool            *PoolStats       `json:"pool,omitempty"`
	SlowQueries     []SlowQuery      `json:"slow_queries"`
	Recommendations []string         `json:"recommendations"`
}

// metricWindow is a fixed-size ring of the most recent metrics.
type metricWindow struct {
	buf  []QueryMetric
	next int
	full bool
}

func (w *metricWindow) add(m QueryMetric) {
	w.buf[w.next] = m
	w.next = (w.next + 1) % len(w.buf)
	if w.next == 0 {
		w.full = true
	}
}

func (w *metricWindow) samples() []QueryMetric {
	if w.full {
		return w.buf
	}
	return w.buf[:w.next]
}

// PerformanceMonitor records per-operation metrics in bounded rolling
// windows and builds diagnostics reports. It is safe for concurrent use.
type PerformanceMonitor struct {
	mu      sync.RWMutex
	windows map[string]*metricWindow
	slow    []SlowQuery

	windowSize    int
	slowThreshold time.Duration
	caches        *cache.Registry
	db            *sql.DB
	metrics       *Metrics
	logger        *slog.Logger
}

// MonitorOption configures a PerformanceMonitor.
type MonitorOption func(*PerformanceMonitor)

// WithWindowSize sets how many metrics are kept per operation.
func WithWindowSize(n int) MonitorOption {
	return func(m *PerformanceMonitor) {
		if n > 0 {
			m.windowSize = n
		}
	}
}

// WithSlowQueryThreshold sets the slow-query cut-off.
func WithSlowQueryThreshold(d time.Duration) MonitorOption {
	return func(m *PerformanceMonitor) {
		if d > 0 {
			m.slowThreshold = d
		}
	}
}

// WithCacheRegistry includes cache statistics in reports.
func WithCacheRegistry(r *cache.Registry) MonitorOption {
	return func(m *PerformanceMonitor) { m.caches = r }
}

// WithDB includes connection pool statistics in reports.
func WithDB(db *sql.DB) MonitorOption {
	return func(m *PerformanceMonitor) { m.db = db }
}

// WithMetrics exports every recorded metric to Prometheus.
func WithMetrics(metrics *Metrics) MonitorOption {
	return func(m *PerformanceMonitor) { m.metrics = metrics }
}

// WithMonitorLogger sets the logger used for slow-query warnings.
func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *PerformanceMonitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewPerformanceMonitor creates a monitor.
func NewPerformanceMonitor(opts ...MonitorOption) *PerformanceMonitor {
	m := &PerformanceMonitor{
		windows:       make(map[string]*metricWindow),
		windowSize:    DefaultWindowSize,
		slowThreshold: DefaultSlowQueryThreshold,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record appends qm to op's window.
func (m *PerformanceMonitor) Record(op string, qm QueryMetric) {
	m.record(op, qm, false)
}

// RecordFailure appends qm to op's window and counts it as an error.
func (m *PerformanceMonitor) RecordFailure(op string, qm QueryMetric) {
	m.record(op, qm, true)
}

func (m *PerformanceMonitor) record(op string, qm QueryMetric, failed bool) {
	if qm.At.IsZero() {
		qm.At = time.Now()
	}

	m.mu.Lock()
	w, ok := m.windows[op]
	if !ok {
		w = &metricWindow{buf: make([]QueryMetric, m.windowSize)}
		m.windows[op] = w
	}
	w.add(qm)

	slow := qm.QueryTime > m.slowThreshold
	if slow {
		m.slow = append(m.slow, SlowQuery{
			Operation:   op,
			QueryTimeMs: durationMs(qm.QueryTime),
			ResultCount: qm.ResultCount,
			At:          qm.At,
		})
		if len(m.slow) > maxSlowQueries {
			m.slow = m.slow[len(m.slow)-maxSlowQueries:]
		}
	}
	m.mu.Unlock()

	if slow {
		m.logger.Warn("slow query", "operation", op, "duration", qm.QueryTime, "results", qm.ResultCount)
	}
	m.metrics.observeQuery(op, qm, failed)
}

// AverageQueryTime returns the mean query time for op, or across every
// operation when op is empty. It is zero when nothing was recorded.
func (m *PerformanceMonitor) AverageQueryTime(op string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total time.Duration
	n := 0
	for name, w := range m.windows {
		if op != "" && name != op {
			continue
		}
		for _, s := range w.samples() {
			total += s.QueryTime
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// CacheHitRate returns the fraction of cache hits for op, or across every
// operation when op is empty.
func (m *PerformanceMonitor) CacheHitRate(op string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits, n := 0, 0
	for name, w := range m.windows {
		if op != "" && name != op {
			continue
		}
		for _, s := range w.samples() {
			if s.CacheHit {
				hits++
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(hits) / float64(n)
}

// Report builds a diagnostics snapshot.
func (m *PerformanceMonitor) Report() PerformanceReport {
	r := PerformanceReport{GeneratedAt: time.Now().UTC()}

	m.mu.RLock()
	var totalTime time.Duration
	totalHits := 0
	for op, w := range m.windows {
		samples := w.samples()
		if len(samples) == 0 {
			continue
		}
		st := OperationStats{Operation: op, Samples: len(samples)}
		var sum, max time.Duration
		hits, results := 0, 0
		for _, s := range samples {
			sum += s.QueryTime
			if s.QueryTime > max {
				max = s.QueryTime
			}
			if s.CacheHit {
				hits++
			}
			results += s.ResultCount
		}
		st.AvgQueryTimeMs = durationMs(sum / time.Duration(len(samples)))
		st.MaxQueryTimeMs = durationMs(max)
		st.CacheHitRate = float64(hits) / float64(len(samples))
		st.AvgResultCount = float64(results) / float64(len(samples))
		r.Operations = append(r.Operations, st)

		r.TotalSamples += len(samples)
		totalTime += sum
		totalHits += hits
	}
	r.SlowQueries = append([]SlowQuery(nil), m.slow...)
	m.mu.RUnlock()

	sort.Slice(r.Operations, func(i, j int) bool { return r.Operations[i].Operation < r.Operations[j].Operation })
	if r.TotalSamples > 0 {
		r.AvgQueryTimeMs = durationMs(totalTime / time.Duration(r.TotalSamples))
		r.CacheHitRate = float64(totalHits) / float64(r.TotalSamples)
	}
	if r.SlowQueries == nil {
		r.SlowQueries = []SlowQuery{}
	}

	if m.caches != nil {
		r.Caches = m.caches.Stats()
	}
	if m.db != nil {
		s := m.db.Stats()
		r.Pool = &PoolStats{
			MaxOpenConnections: s.MaxOpenConnections,
			OpenConnections:    s.OpenConnections,
			InUse:              s.InUse,
			Idle:               s.Idle,
			WaitCount:          s.WaitCount,
			WaitDurationMs:     durationMs(s.WaitDuration),
		}
	}

	r.Recommendations = m.recommend(r)
	return r
}

// recommend applies simple rules to a report.
func (m *PerformanceMonitor) recommend(r PerformanceReport) []string {
	var recs []string

	if r.TotalSamples >= 10 && r.CacheHitRate < 0.3 {
		recs = append(recs, fmt.Sprintf("Cache hit rate is low (%.0f%%); consider increasing cache TTLs.", r.CacheHitRate*100))
	}
	if r.AvgQueryTimeMs > 200 {
		recs = append(recs, fmt.Sprintf("Average query time is high (%.0fms); review indexes on relationships(from_id, to_id).", r.AvgQueryTimeMs))
	}
	if n := len(r.SlowQueries); n > 0 {
		recs = append(recs, fmt.Sprintf("%d slow quer%s over %v recorded; inspect the slow query list.", n, plural(n, "y", "ies"), m.slowThreshold))
	}
	for _, c := range r.Caches {
		if c.MaxKeys > 0 && c.Size*10 >= c.MaxKeys*9 {
			recs = append(recs, fmt.Sprintf("Cache %s is near capacity (%d/%d); consider raising its max keys.", c.Name, c.Size, c.MaxKeys))
		}
	}
	if r.Pool != nil {
		if r.Pool.WaitCount > 0 {
			recs = append(recs, fmt.Sprintf("Connection pool waited %d time(s); consider raising max open connections.", r.Pool.WaitCount))
		}
		if r.Pool.MaxOpenConnections > 0 && r.Pool.InUse >= r.Pool.MaxOpenConnections {
			recs = append(recs, "All pooled connections are in use; queries may queue.")
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "All systems performing within expected parameters.")
	}
	return recs
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
