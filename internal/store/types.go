// Package store is the embedded index backend: a bleve BM25 index for
// sparse and neural-sparse retrieval, an HNSW graph for dense retrieval,
// and a SQLite product catalog, loaded together from a snapshot directory.
package store

import (
	"context"
	"fmt"

	"github.com/searchworks/partfuse/internal/encode"
	"github.com/searchworks/partfuse/internal/search"
)

// Backend is the index backend the retrieval adapters translate queries
// against. Implementations are safe for concurrent use.
type Backend interface {
	// DenseSearch finds the limit nearest documents to the embedding.
	DenseSearch(ctx context.Context, embedding []float32, limit int) ([]Hit, error)

	// SparseSearch runs lexical BM25 retrieval over the query terms.
	SparseSearch(ctx context.Context, terms []string, limit int) ([]Hit, error)

	// NeuralSparseSearch retrieves by weighted-term disjunction, using the
	// weights as per-term boosts.
	NeuralSparseSearch(ctx context.Context, terms []encode.Term, limit int) ([]Hit, error)
}

// Hit is one backend match. Score scales differ per search kind and are
// only comparable within one result list.
type Hit struct {
	DocID string
	Score float64
}

// ProductDoc is one indexable catalog entry.
type ProductDoc struct {
	// ID is the document identifier, unique across the snapshot.
	ID string

	// Product is the catalog payload served on enrichment.
	Product search.Product

	// Embedding is the dense vector for the product text. May be nil when
	// the snapshot was built without dense support.
	Embedding []float32
}

// SparseConfig configures the BM25 index.
type SparseConfig struct {
	// StopWords are filtered out during analysis.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultSparseConfig returns the default sparse index configuration.
func DefaultSparseConfig() SparseConfig {
	return SparseConfig{
		StopWords:      DefaultCatalogStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCatalogStopWords are description filler words excluded from the
// sparse index.
var DefaultCatalogStopWords = []string{
	"a", "an", "the", "of", "in", "for", "to", "with", "by",
	"and", "or", "type", "series", "item",
}

// VectorConfig configures the dense vector index.
type VectorConfig struct {
	// Dimensions is the embedding dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (default) or "l2".
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the vector index.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates an embedding dimension mismatch between
// the query and the snapshot.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: snapshot has %d, got %d", e.Expected, e.Got)
}
