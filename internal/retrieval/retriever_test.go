package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchworks/partfuse/internal/embed"
	"github.com/searchworks/partfuse/internal/encode"
	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
)

// fakeBackend is a scriptable store.Backend.
type fakeBackend struct {
	hits []store.Hit
	err  error

	denseCalls  int
	sparseCalls int
	neuralCalls int

	lastLimit int
	lastTerms []string
	lastEmbed []float32
}

func (f *fakeBackend) DenseSearch(ctx context.Context, embedding []float32, limit int) ([]store.Hit, error) {
	f.denseCalls++
	f.lastLimit = limit
	f.lastEmbed = embedding
	return f.hits, f.err
}

func (f *fakeBackend) SparseSearch(ctx context.Context, terms []string, limit int) ([]store.Hit, error) {
	f.sparseCalls++
	f.lastLimit = limit
	f.lastTerms = terms
	return f.hits, f.err
}

func (f *fakeBackend) NeuralSparseSearch(ctx context.Context, terms []encode.Term, limit int) ([]store.Hit, error) {
	f.neuralCalls++
	f.lastLimit = limit
	return f.hits, f.err
}

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

func (f *fakeEmbedder) Dimensions() int                    { return len(f.vector) }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }

var _ embed.Embedder = (*fakeEmbedder)(nil)

// fakeEncoder returns fixed weighted terms.
type fakeEncoder struct {
	terms []encode.Term
	err   error
}

func (f *fakeEncoder) Encode(ctx context.Context, text string) ([]encode.Term, error) {
	return f.terms, f.err
}

func (f *fakeEncoder) ModelName() string { return "fake" }

var (
	_ store.Backend  = (*fakeBackend)(nil)
	_ encode.Encoder = (*fakeEncoder)(nil)
)

// ============================================================================
// Shared hit conversion
// ============================================================================

func TestToResult_SortsAndTruncates(t *testing.T) {
	hits := []store.Hit{
		{DocID: "b", Score: 0.5},
		{DocID: "a", Score: 0.9},
		{DocID: "c", Score: 0.5},
		{DocID: "d", Score: 0.1},
	}

	result := toResult(search.StrategySparse, hits, 0, 3)
	require.Len(t, result, 3)
	assert.Equal(t, "a", result[0].DocID)

	// Equal scores break ties on ascending DocID
	assert.Equal(t, "b", result[1].DocID)
	assert.Equal(t, "c", result[2].DocID)
	assert.Equal(t, search.StrategySparse, result[0].Strategy)
}

func TestToResult_MinScoreAndDuplicates(t *testing.T) {
	hits := []store.Hit{
		{DocID: "a", Score: 0.3},
		{DocID: "a", Score: 0.8},
		{DocID: "b", Score: 0.2},
	}

	result := toResult(search.StrategyDense, hits, 0.4, 10)
	require.Len(t, result, 1)
	assert.Equal(t, "a", result[0].DocID)
	assert.InDelta(t, 0.8, result[0].Score, 0.001)
}

func TestToResult_ZeroFloorKeepsNegativeScores(t *testing.T) {
	// Cosine similarity ranges over [-1, 1]; no floor means no filtering.
	hits := []store.Hit{
		{DocID: "a", Score: 0.5},
		{DocID: "b", Score: -0.3},
	}

	result := toResult(search.StrategyDense, hits, 0, 10)
	require.Len(t, result, 2)
	assert.Equal(t, "b", result[1].DocID)
	assert.InDelta(t, -0.3, result[1].Score, 0.001)
}

// ============================================================================
// Dense adapter
// ============================================================================

func TestDenseRetriever_EmbedsAndSearches(t *testing.T) {
	backend := &fakeBackend{hits: []store.Hit{{DocID: "p1", Score: 0.9}}}
	embedder := &fakeEmbedder{vector: []float32{1, 0, 0, 0}}

	r := NewDenseRetriever(backend, embedder, Options{})
	assert.Equal(t, search.StrategyDense, r.Strategy())

	result, err := r.Retrieve(context.Background(), "hydraulic pump", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "p1", result[0].DocID)

	assert.Equal(t, 1, backend.denseCalls)
	assert.Equal(t, []float32{1, 0, 0, 0}, backend.lastEmbed)
	assert.Equal(t, 30, backend.lastLimit, "fetch widened beyond the requested limit")
}

func TestDenseRetriever_MinScoreFilters(t *testing.T) {
	backend := &fakeBackend{hits: []store.Hit{
		{DocID: "strong", Score: 0.85},
		{DocID: "weak", Score: 0.2},
	}}
	r := NewDenseRetriever(backend, &fakeEmbedder{vector: []float32{1}}, Options{MinScore: 0.4})

	result, err := r.Retrieve(context.Background(), "bearing", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "strong", result[0].DocID)
}

func TestDenseRetriever_EmbeddingFailure(t *testing.T) {
	backend := &fakeBackend{}
	r := NewDenseRetriever(backend, &fakeEmbedder{err: errors.New("model gone")}, Options{})

	_, err := r.Retrieve(context.Background(), "pump", 10)
	require.Error(t, err)

	var re *search.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, search.StrategyDense, re.Strategy)
	assert.Equal(t, search.RetrievalBackendUnavailable, re.Kind)
	assert.Zero(t, backend.denseCalls, "backend must not be called when embedding fails")
}

func TestDenseRetriever_TimeoutKind(t *testing.T) {
	backend := &fakeBackend{err: context.DeadlineExceeded}
	r := NewDenseRetriever(backend, &fakeEmbedder{vector: []float32{1}}, Options{})

	_, err := r.Retrieve(context.Background(), "pump", 10)
	var re *search.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, search.RetrievalTimeout, re.Kind)
}

func TestDenseRetriever_DimensionMismatchIsInvalidQuery(t *testing.T) {
	backend := &fakeBackend{err: store.ErrDimensionMismatch{Expected: 384, Got: 8}}
	r := NewDenseRetriever(backend, &fakeEmbedder{vector: []float32{1}}, Options{})

	_, err := r.Retrieve(context.Background(), "pump", 10)
	var re *search.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, search.RetrievalInvalidQuery, re.Kind)
}

// ============================================================================
// Sparse adapter
// ============================================================================

func TestSparseRetriever_PassesTerms(t *testing.T) {
	backend := &fakeBackend{hits: []store.Hit{{DocID: "p2", Score: 3.1}}}
	r := NewSparseRetriever(backend, Options{})
	assert.Equal(t, search.StrategySparse, r.Strategy())

	result, err := r.Retrieve(context.Background(), "  hydraulic   pump ", 5)
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Equal(t, []string{"hydraulic", "pump"}, backend.lastTerms)
	assert.Equal(t, 15, backend.lastLimit)
}

func TestSparseRetriever_BlankQuery(t *testing.T) {
	backend := &fakeBackend{}
	r := NewSparseRetriever(backend, Options{})

	result, err := r.Retrieve(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Zero(t, backend.sparseCalls)
}

func TestSparseRetriever_BackendFailure(t *testing.T) {
	backend := &fakeBackend{err: fuseerrors.New(fuseerrors.ErrCodeBackendUnavailable, "index closed", nil)}
	r := NewSparseRetriever(backend, Options{})

	_, err := r.Retrieve(context.Background(), "pump", 5)
	var re *search.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, search.StrategySparse, re.Strategy)
	assert.Equal(t, search.RetrievalBackendUnavailable, re.Kind)
}

// ============================================================================
// Neural-sparse adapter
// ============================================================================

func TestNeuralSparseRetriever_EncodesAndSearches(t *testing.T) {
	backend := &fakeBackend{hits: []store.Hit{{DocID: "p3", Score: 2.0}}}
	encoder := &fakeEncoder{terms: []encode.Term{{Text: "pump", Weight: 1.0}}}

	r := NewNeuralSparseRetriever(backend, encoder, Options{})
	assert.Equal(t, search.StrategyNeuralSparse, r.Strategy())

	result, err := r.Retrieve(context.Background(), "hydraulic pump", 5)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 1, backend.neuralCalls)
}

func TestNeuralSparseRetriever_NoTermsSkipsBackend(t *testing.T) {
	backend := &fakeBackend{}
	r := NewNeuralSparseRetriever(backend, &fakeEncoder{}, Options{})

	result, err := r.Retrieve(context.Background(), "the of and", 5)
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Zero(t, backend.neuralCalls)
}

func TestNeuralSparseRetriever_EncodingFailure(t *testing.T) {
	r := NewNeuralSparseRetriever(&fakeBackend{}, &fakeEncoder{err: errors.New("service down")}, Options{})

	_, err := r.Retrieve(context.Background(), "pump", 5)
	var re *search.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, search.StrategyNeuralSparse, re.Strategy)
	assert.Equal(t, search.RetrievalBackendUnavailable, re.Kind)
}

// ============================================================================
// Circuit breaker
// ============================================================================

func TestRetriever_CircuitOpensAfterFailures(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	breaker := fuseerrors.NewCircuitBreaker("sparse",
		fuseerrors.WithMaxFailures(2),
		fuseerrors.WithResetTimeout(time.Hour))
	r := NewSparseRetriever(backend, Options{Breaker: breaker})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := r.Retrieve(ctx, "pump", 5)
		require.Error(t, err)
	}
	require.Equal(t, 2, backend.sparseCalls)

	// Third call fails fast without touching the backend
	_, err := r.Retrieve(ctx, "pump", 5)
	require.Error(t, err)
	assert.Equal(t, 2, backend.sparseCalls)

	var re *search.RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, search.RetrievalBackendUnavailable, re.Kind)
	assert.ErrorIs(t, re.Cause, fuseerrors.ErrCircuitOpen)
}

func TestRetriever_BreakerRecordsSuccess(t *testing.T) {
	backend := &fakeBackend{hits: []store.Hit{{DocID: "p1", Score: 1.0}}}
	breaker := fuseerrors.NewCircuitBreaker("sparse", fuseerrors.WithMaxFailures(2))
	r := NewSparseRetriever(backend, Options{Breaker: breaker})

	_, err := r.Retrieve(context.Background(), "pump", 5)
	require.NoError(t, err)
	assert.Equal(t, fuseerrors.StateClosed, breaker.State())
	assert.Zero(t, breaker.Failures())
}
