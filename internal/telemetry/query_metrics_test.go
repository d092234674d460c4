package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{49 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{200 * time.Millisecond, BucketP500},
		{900 * time.Millisecond, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), "latency %v", tt.latency)
	}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"normal query", "Hydraulic Pump Seal", []string{"hydraulic", "pump", "seal"}},
		{"short terms filtered", "a 12 pump", []string{"pump"}},
		{"empty", "   ", nil},
		{"all short", "a b", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTerms(tt.query))
		})
	}
}

func TestCircularBuffer(t *testing.T) {
	buf := NewCircularBuffer[int](3)

	buf.Add(1)
	buf.Add(2)
	assert.Equal(t, []int{1, 2}, buf.Items())

	buf.Add(3)
	buf.Add(4) // evicts 1
	assert.Equal(t, []int{2, 3, 4}, buf.Items())
	assert.Equal(t, 3, buf.Size())

	buf.Clear()
	assert.Zero(t, buf.Size())
	assert.Empty(t, buf.Items())
}

func TestQueryMetricsRecord(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	defer m.Close()

	m.Record(QueryEvent{
		Query:       "HYP220479",
		Category:    "part_number",
		Strategies:  []string{"sparse", "neural_sparse"},
		ResultCount: 3,
		Latency:     8 * time.Millisecond,
		Timestamp:   time.Now(),
	})
	m.Record(QueryEvent{
		Query:       "hydraulic pump",
		Category:    "natural_language",
		Strategies:  []string{"dense", "sparse", "neural_sparse"},
		ResultCount: 0,
		Degraded:    true,
		Latency:     60 * time.Millisecond,
		Timestamp:   time.Now(),
	})

	snap := m.Snapshot()

	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.CategoryCounts["part_number"])
	assert.Equal(t, int64(1), snap.CategoryCounts["natural_language"])
	assert.Equal(t, int64(2), snap.StrategyCounts["sparse"])
	assert.Equal(t, int64(1), snap.StrategyCounts["dense"])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.DegradedCount)
	assert.Equal(t, []string{"hydraulic pump"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP100])
}

func TestQueryMetricsCacheHits(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	defer m.Close()

	m.Record(QueryEvent{Query: "pump", ResultCount: 1, CacheHit: true})
	m.Record(QueryEvent{Query: "pump", ResultCount: 1})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.CacheHitCount)
	assert.InDelta(t, 0.5, snap.CacheHitRate(), 1e-9)
}

func TestQueryMetricsExactRepeat(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	defer m.Close()

	m.Record(QueryEvent{Query: "HYP220479", ResultCount: 1})
	m.Record(QueryEvent{Query: "hyp220479", ResultCount: 1}) // normalized repeat
	m.Record(QueryEvent{Query: "other", ResultCount: 1})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
}

func TestQueryMetricsStrategyLatencyEMA(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0, LatencyAlpha: 0.1})
	defer m.Close()

	// First sample seeds the EMA directly.
	m.RecordStrategyLatency("dense", 100*time.Millisecond)
	snap := m.Snapshot()
	assert.Equal(t, 100*time.Millisecond, snap.StrategyLatency["dense"])

	// Second sample folds in at 10%.
	m.RecordStrategyLatency("dense", 200*time.Millisecond)
	snap = m.Snapshot()
	assert.InDelta(t, float64(110*time.Millisecond), float64(snap.StrategyLatency["dense"]), float64(time.Millisecond))
}

func TestQueryMetricsTopTerms(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	defer m.Close()

	for i := 0; i < 3; i++ {
		m.Record(QueryEvent{Query: "hydraulic pump", ResultCount: 1})
	}
	m.Record(QueryEvent{Query: "pump seal", ResultCount: 1})

	snap := m.Snapshot()
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, "pump", snap.TopTerms[0].Term)
	assert.Equal(t, int64(4), snap.TopTerms[0].Count)
}

func TestQueryMetricsZeroResultPercentage(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	defer m.Close()

	m.Record(QueryEvent{Query: "found", ResultCount: 5})
	m.Record(QueryEvent{Query: "missing", ResultCount: 0})

	snap := m.Snapshot()
	assert.InDelta(t, 50.0, snap.ZeroResultPercentage(), 1e-9)
}

func TestQueryMetricsConcurrentRecord(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(QueryEvent{Query: "pump", Category: "natural_language", ResultCount: 1})
				m.RecordStrategyLatency("sparse", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(800), snap.TotalQueries)
}

func TestQueryMetricsFlushToStore(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewSQLiteMetricsStore(db)
	require.NoError(t, err)

	m := NewQueryMetricsWithConfig(store, QueryMetricsConfig{FlushInterval: 0})
	m.Record(QueryEvent{
		Query:       "hydraulic pump",
		Category:    "natural_language",
		ResultCount: 2,
		Latency:     5 * time.Millisecond,
	})

	require.NoError(t, m.Flush())

	today := time.Now().Format("2006-01-02")
	counts, err := store.GetCategoryCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["natural_language"])

	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	assert.NotEmpty(t, terms)
}

func TestQueryMetricsRecordAfterClose(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{FlushInterval: 0})
	require.NoError(t, m.Close())

	m.Record(QueryEvent{Query: "pump", ResultCount: 1})

	snap := m.Snapshot()
	assert.Zero(t, snap.TotalQueries)
}
