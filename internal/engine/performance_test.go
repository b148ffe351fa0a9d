package engine

import (
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	_ "modernc.org/sqlite"

	"github.com/scrypster/warmconnector/internal/cache"
)

func hasRecommendation(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestPerformanceMonitor_RollingWindow(t *testing.T) {
	m := NewPerformanceMonitor(WithWindowSize(3))
	for i := 1; i <= 5; i++ {
		m.Record(OpFindPeople, QueryMetric{QueryTime: time.Duration(i) * time.Millisecond})
	}

	report := m.Report()
	if len(report.Operations) != 1 || report.Operations[0].Samples != 3 {
		t.Fatalf("expected one operation with 3 samples, got %+v", report.Operations)
	}
	// Only 3, 4 and 5ms remain.
	if got := m.AverageQueryTime(OpFindPeople); got != 4*time.Millisecond {
		t.Errorf("AverageQueryTime: got %v, want 4ms", got)
	}
	if report.Operations[0].MaxQueryTimeMs != 5 {
		t.Errorf("MaxQueryTimeMs: got %v, want 5", report.Operations[0].MaxQueryTimeMs)
	}
}

func TestPerformanceMonitor_AveragesAndHitRate(t *testing.T) {
	m := NewPerformanceMonitor()
	m.Record(OpFindPeople, QueryMetric{QueryTime: 10 * time.Millisecond})
	m.Record(OpFindPeople, QueryMetric{QueryTime: 30 * time.Millisecond, CacheHit: true})
	m.Record(OpFindTwoHopEdges, QueryMetric{QueryTime: 50 * time.Millisecond})
	m.Record(OpFindTwoHopEdges, QueryMetric{QueryTime: 70 * time.Millisecond, CacheHit: true})

	if got := m.AverageQueryTime(OpFindPeople); got != 20*time.Millisecond {
		t.Errorf("per-op average: got %v, want 20ms", got)
	}
	if got := m.AverageQueryTime(""); got != 40*time.Millisecond {
		t.Errorf("overall average: got %v, want 40ms", got)
	}
	if got := m.CacheHitRate(OpFindPeople); got != 0.5 {
		t.Errorf("per-op hit rate: got %v, want 0.5", got)
	}
	if got := m.CacheHitRate(""); got != 0.5 {
		t.Errorf("overall hit rate: got %v, want 0.5", got)
	}
	if got := m.AverageQueryTime("unknown"); got != 0 {
		t.Errorf("unknown op should average 0, got %v", got)
	}
}

func TestPerformanceMonitor_HealthyReport(t *testing.T) {
	m := NewPerformanceMonitor()
	m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond, CacheHit: true})

	report := m.Report()
	if len(report.Recommendations) != 1 || report.Recommendations[0] != "All systems performing within expected parameters." {
		t.Errorf("unexpected recommendations %v", report.Recommendations)
	}
	if report.SlowQueries == nil {
		t.Error("SlowQueries should be an empty list, not nil")
	}
}

func TestPerformanceMonitor_SlowQueries(t *testing.T) {
	m := NewPerformanceMonitor(WithSlowQueryThreshold(10 * time.Millisecond))
	m.Record(OpFindTwoHopEdges, QueryMetric{QueryTime: 5 * time.Millisecond})
	m.Record(OpFindTwoHopEdges, QueryMetric{QueryTime: 250 * time.Millisecond, ResultCount: 7})

	report := m.Report()
	if len(report.SlowQueries) != 1 {
		t.Fatalf("expected 1 slow query, got %d", len(report.SlowQueries))
	}
	sq := report.SlowQueries[0]
	if sq.Operation != OpFindTwoHopEdges || sq.QueryTimeMs != 250 || sq.ResultCount != 7 {
		t.Errorf("slow query: got %+v", sq)
	}
	if !hasRecommendation(report.Recommendations, "slow query") {
		t.Errorf("expected a slow query recommendation, got %v", report.Recommendations)
	}
}

func TestPerformanceMonitor_SlowQueryListBounded(t *testing.T) {
	m := NewPerformanceMonitor(WithSlowQueryThreshold(time.Nanosecond))
	for i := 0; i < maxSlowQueries+20; i++ {
		m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond})
	}
	if got := len(m.Report().SlowQueries); got != maxSlowQueries {
		t.Errorf("slow query list: got %d, want %d", got, maxSlowQueries)
	}
}

func TestPerformanceMonitor_Recommendations(t *testing.T) {
	t.Run("low hit rate", func(t *testing.T) {
		m := NewPerformanceMonitor()
		for i := 0; i < 10; i++ {
			m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond})
		}
		if !hasRecommendation(m.Report().Recommendations, "Cache hit rate is low") {
			t.Error("expected a low hit rate recommendation")
		}
	})

	t.Run("few samples do not trigger hit rate", func(t *testing.T) {
		m := NewPerformanceMonitor()
		m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond})
		if hasRecommendation(m.Report().Recommendations, "Cache hit rate is low") {
			t.Error("one sample should not trigger a hit rate recommendation")
		}
	})

	t.Run("high average", func(t *testing.T) {
		m := NewPerformanceMonitor(WithSlowQueryThreshold(time.Hour))
		m.Record(OpFindTwoHopEdges, QueryMetric{QueryTime: 300 * time.Millisecond, CacheHit: true})
		if !hasRecommendation(m.Report().Recommendations, "Average query time is high") {
			t.Error("expected a high average recommendation")
		}
	})

	t.Run("cache near capacity", func(t *testing.T) {
		caches := cache.NewRegistry(map[cache.Name]cache.Config{
			cache.Pathfinding: {TTL: time.Minute, MaxKeys: 10},
		})
		pc := caches.Cache(cache.Pathfinding)
		for i := 0; i < 9; i++ {
			pc.Set(string(rune('a'+i)), i)
		}
		m := NewPerformanceMonitor(WithCacheRegistry(caches))
		report := m.Report()
		if len(report.Caches) != 3 {
			t.Fatalf("expected 3 cache stats, got %d", len(report.Caches))
		}
		if !hasRecommendation(report.Recommendations, "pathfinding is near capacity") {
			t.Errorf("expected a capacity recommendation, got %v", report.Recommendations)
		}
	})
}

func TestPerformanceMonitor_PoolStats(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	report := NewPerformanceMonitor(WithDB(db)).Report()
	if report.Pool == nil {
		t.Fatal("expected pool stats")
	}
	if report.Pool.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections: got %d, want 1", report.Pool.MaxOpenConnections)
	}
}

func TestPerformanceMonitor_ExportsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := NewPerformanceMonitor(WithMetrics(metrics))

	m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond})
	m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond, CacheHit: true})
	m.RecordFailure(OpFindPeople, QueryMetric{QueryTime: time.Millisecond})

	if got := testutil.ToFloat64(metrics.queriesTotal.WithLabelValues(OpFindPeople, "false")); got != 2 {
		t.Errorf("queries (miss): got %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.queriesTotal.WithLabelValues(OpFindPeople, "true")); got != 1 {
		t.Errorf("queries (hit): got %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.queryErrors.WithLabelValues(OpFindPeople)); got != 1 {
		t.Errorf("errors: got %v, want 1", got)
	}
}

func TestRegisterCacheGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	caches := cache.NewRegistry(nil)
	RegisterCacheGauges(reg, caches)
	caches.Cache(cache.ConnectionSearch).Set("k", 1)

	n, err := testutil.GatherAndCount(reg, "warmconnector_cache_entries")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 cache gauges, got %d", n)
	}
}

func TestPerformanceMonitor_ConcurrentRecord(t *testing.T) {
	m := NewPerformanceMonitor(WithWindowSize(50))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(OpFindPeople, QueryMetric{QueryTime: time.Millisecond})
				_ = m.Report()
			}
		}()
	}
	wg.Wait()

	if got := m.Report().TotalSamples; got != 50 {
		t.Errorf("TotalSamples: got %d, want 50", got)
	}
}
