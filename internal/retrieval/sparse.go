package retrieval

import (
	"context"
	"strings"

	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
)

// SparseRetriever runs lexical BM25 retrieval over the query terms.
type SparseRetriever struct {
	backend store.Backend
	opts    Options
}

var _ search.Retriever = (*SparseRetriever)(nil)

// NewSparseRetriever builds the sparse adapter.
func NewSparseRetriever(backend store.Backend, opts Options) *SparseRetriever {
	return &SparseRetriever{backend: backend, opts: opts}
}

// Strategy identifies this retriever.
func (r *SparseRetriever) Strategy() search.Strategy {
	return search.StrategySparse
}

// Retrieve tokenizes queryText on whitespace and hands the terms to the
// backend; the index analyzer does the part-number splitting.
func (r *SparseRetriever) Retrieve(ctx context.Context, queryText string, limit int) (search.RetrievalResult, error) {
	terms := strings.Fields(queryText)
	if len(terms) == 0 {
		return search.RetrievalResult{}, nil
	}

	var hits []store.Hit
	err := guard(r.Strategy(), r.opts.Breaker, func() error {
		var err error
		hits, err = r.backend.SparseSearch(ctx, terms, limit*r.opts.overfetch())
		return err
	})
	if err != nil {
		return nil, failure(ctx, r.Strategy(), err)
	}

	return toResult(r.Strategy(), hits, r.opts.MinScore, limit), nil
}
