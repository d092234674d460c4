package retrieval

import (
	"context"

	"github.com/searchworks/partfuse/internal/embed"
	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
)

// DenseRetriever embeds the query and searches the vector index.
type DenseRetriever struct {
	backend  store.Backend
	embedder embed.Embedder
	opts     Options
}

var _ search.Retriever = (*DenseRetriever)(nil)

// NewDenseRetriever builds the dense adapter.
func NewDenseRetriever(backend store.Backend, embedder embed.Embedder, opts Options) *DenseRetriever {
	return &DenseRetriever{backend: backend, embedder: embedder, opts: opts}
}

// Strategy identifies this retriever.
func (r *DenseRetriever) Strategy() search.Strategy {
	return search.StrategyDense
}

// Retrieve embeds queryText and returns the nearest documents.
func (r *DenseRetriever) Retrieve(ctx context.Context, queryText string, limit int) (search.RetrievalResult, error) {
	var hits []store.Hit

	err := guard(r.Strategy(), r.opts.Breaker, func() error {
		vector, err := r.embedder.Embed(ctx, queryText)
		if err != nil {
			return fuseerrors.New(fuseerrors.ErrCodeEmbeddingFailed, "query embedding failed", err)
		}

		hits, err = r.backend.DenseSearch(ctx, vector, limit*r.opts.overfetch())
		return err
	})
	if err != nil {
		return nil, failure(ctx, r.Strategy(), err)
	}

	return toResult(r.Strategy(), hits, r.opts.MinScore, limit), nil
}
