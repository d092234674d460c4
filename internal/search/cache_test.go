package search

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyNormalization(t *testing.T) {
	// Case and whitespace differences map to the same entry.
	a := CacheKey("Hydraulic  Pump", AllStrategies(), FusionRRF, nil, 10)
	b := CacheKey("hydraulic pump", AllStrategies(), FusionRRF, nil, 10)
	assert.Equal(t, a, b)
}

func TestCacheKeyStrategyOrderIrrelevant(t *testing.T) {
	a := CacheKey("pump", []Strategy{StrategyDense, StrategySparse}, FusionRRF, nil, 10)
	b := CacheKey("pump", []Strategy{StrategySparse, StrategyDense}, FusionRRF, nil, 10)
	assert.Equal(t, a, b)
}

func TestCacheKeyWeightsAreCanonical(t *testing.T) {
	// Equal weight maps hash equally regardless of construction order.
	a := CacheKey("pump", AllStrategies(), FusionWeighted,
		Weights{StrategyDense: 0.7, StrategySparse: 0.3}, 10)
	b := CacheKey("pump", AllStrategies(), FusionWeighted,
		Weights{StrategySparse: 0.3, StrategyDense: 0.7}, 10)
	assert.Equal(t, a, b)
}

func TestCacheKeyDiscriminates(t *testing.T) {
	base := CacheKey("pump", AllStrategies(), FusionRRF, nil, 10)

	tests := []struct {
		name string
		key  string
	}{
		{"different text", CacheKey("valve", AllStrategies(), FusionRRF, nil, 10)},
		{"different strategies", CacheKey("pump", []Strategy{StrategySparse}, FusionRRF, nil, 10)},
		{"different mode", CacheKey("pump", AllStrategies(), FusionWeighted, nil, 10)},
		{"different weights", CacheKey("pump", AllStrategies(), FusionRRF,
			Weights{StrategyDense: 2.0, StrategySparse: 1.0}, 10)},
		{"different limit", CacheKey("pump", AllStrategies(), FusionRRF, nil, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.key)
		})
	}
}

func TestCacheGetPut(t *testing.T) {
	cache := NewResultCache(10, 0)
	key := CacheKey("pump", AllStrategies(), FusionRRF, nil, 10)
	value := FusedResult{{DocID: "A", FusedScore: 0.5}}

	_, ok := cache.Get(key)
	require.False(t, ok)

	cache.Put(key, value)

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, value, got)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewResultCache(2, 0)

	cache.Put("k1", FusedResult{{DocID: "1"}})
	cache.Put("k2", FusedResult{{DocID: "2"}})

	// Touch k1 so k2 becomes the eviction candidate.
	_, ok := cache.Get("k1")
	require.True(t, ok)

	cache.Put("k3", FusedResult{{DocID: "3"}})

	_, ok = cache.Get("k1")
	assert.True(t, ok)
	_, ok = cache.Get("k2")
	assert.False(t, ok)
	_, ok = cache.Get("k3")
	assert.True(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewResultCache(10, 20*time.Millisecond)
	cache.Put("k", FusedResult{{DocID: "A"}})

	_, ok := cache.Get("k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok = cache.Get("k")
	assert.False(t, ok)
}

func TestCacheFlush(t *testing.T) {
	cache := NewResultCache(10, 0)
	cache.Put("k1", FusedResult{})
	cache.Put("k2", FusedResult{})
	require.Equal(t, 2, cache.Len())

	cache.Flush()

	assert.Zero(t, cache.Len())
	_, ok := cache.Get("k1")
	assert.False(t, ok)
}

func TestCacheZeroCapacityFallsBack(t *testing.T) {
	cache := NewResultCache(0, 0)
	cache.Put("k", FusedResult{})
	_, ok := cache.Get("k")
	assert.True(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewResultCache(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", j%50)
				cache.Put(key, FusedResult{{DocID: key}})
				if got, ok := cache.Get(key); ok {
					assert.Equal(t, key, got[0].DocID)
				}
			}
		}(i)
	}
	wg.Wait()
}
