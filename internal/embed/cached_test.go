package embed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder is a test double that counts calls
type mockEmbedder struct {
	embedCalls     atomic.Int64
	batchCalls     atomic.Int64
	dimensions     int
	modelName      string
	returnedVector []float32
	err            error
}

func newMockEmbedder(dims int) *mockEmbedder {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return &mockEmbedder{
		dimensions:     dims,
		modelName:      "mock-model",
		returnedVector: vec,
	}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.returnedVector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.returnedVector
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int                    { return m.dimensions }
func (m *mockEmbedder) ModelName() string                  { return m.modelName }
func (m *mockEmbedder) Available(ctx context.Context) bool { return true }
func (m *mockEmbedder) Close() error                       { return nil }

// ============================================================================
// Single-text caching
// ============================================================================

func TestCachedEmbedder_Embed_SecondCallHitsCache(t *testing.T) {
	// Given: a cached embedder over a counting mock
	mock := newMockEmbedder(384)
	cached := NewCachedEmbedder(mock, 10)

	// When: the same query is embedded twice
	vec1, err := cached.Embed(context.Background(), "ball valve")
	require.NoError(t, err)
	vec2, err := cached.Embed(context.Background(), "ball valve")
	require.NoError(t, err)

	// Then: the inner embedder was called once
	assert.Equal(t, int64(1), mock.embedCalls.Load())
	assert.Equal(t, vec1, vec2)
}

func TestCachedEmbedder_Embed_DistinctTextsMiss(t *testing.T) {
	mock := newMockEmbedder(384)
	cached := NewCachedEmbedder(mock, 10)

	_, err := cached.Embed(context.Background(), "ball valve")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "gate valve")
	require.NoError(t, err)

	assert.Equal(t, int64(2), mock.embedCalls.Load())
}

func TestCachedEmbedder_Embed_ErrorsNotCached(t *testing.T) {
	mock := newMockEmbedder(384)
	mock.err = errors.New("backend down")
	cached := NewCachedEmbedder(mock, 10)

	_, err := cached.Embed(context.Background(), "ball valve")
	require.Error(t, err)

	// Recovery: next call goes through again
	mock.err = nil
	_, err = cached.Embed(context.Background(), "ball valve")
	require.NoError(t, err)
	assert.Equal(t, int64(2), mock.embedCalls.Load())
}

// ============================================================================
// Batch caching
// ============================================================================

func TestCachedEmbedder_EmbedBatch_OnlyUncachedForwarded(t *testing.T) {
	// Given: one text already cached
	mock := newMockEmbedder(384)
	cached := NewCachedEmbedder(mock, 10)

	_, err := cached.Embed(context.Background(), "ball valve")
	require.NoError(t, err)

	// When: a batch includes the cached text
	results, err := cached.EmbedBatch(context.Background(), []string{"ball valve", "gate valve", "check valve"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Then: a single batch call covered the two misses
	assert.Equal(t, int64(1), mock.batchCalls.Load())

	// And: all texts are now cached
	_, err = cached.EmbedBatch(context.Background(), []string{"gate valve", "check valve"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mock.batchCalls.Load())
}

func TestCachedEmbedder_EmbedBatch_Empty(t *testing.T) {
	mock := newMockEmbedder(384)
	cached := NewCachedEmbedder(mock, 10)

	results, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, mock.batchCalls.Load())
}

// ============================================================================
// Eviction and passthrough
// ============================================================================

func TestCachedEmbedder_EvictionRecomputes(t *testing.T) {
	mock := newMockEmbedder(16)
	cached := NewCachedEmbedder(mock, 2)

	_, _ = cached.Embed(context.Background(), "a")
	_, _ = cached.Embed(context.Background(), "b")
	_, _ = cached.Embed(context.Background(), "c") // evicts "a"
	_, _ = cached.Embed(context.Background(), "a")

	assert.Equal(t, int64(4), mock.embedCalls.Load())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	mock := newMockEmbedder(384)
	cached := NewCachedEmbedder(mock, 0) // falls back to default size

	assert.Equal(t, 384, cached.Dimensions())
	assert.Equal(t, "mock-model", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.NoError(t, cached.Close())
}
