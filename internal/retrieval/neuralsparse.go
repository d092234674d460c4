package retrieval

import (
	"context"

	"github.com/searchworks/partfuse/internal/encode"
	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
)

// NeuralSparseRetriever expands the query into weighted terms and runs the
// weighted-disjunction search.
type NeuralSparseRetriever struct {
	backend store.Backend
	encoder encode.Encoder
	opts    Options
}

var _ search.Retriever = (*NeuralSparseRetriever)(nil)

// NewNeuralSparseRetriever builds the neural-sparse adapter.
func NewNeuralSparseRetriever(backend store.Backend, encoder encode.Encoder, opts Options) *NeuralSparseRetriever {
	return &NeuralSparseRetriever{backend: backend, encoder: encoder, opts: opts}
}

// Strategy identifies this retriever.
func (r *NeuralSparseRetriever) Strategy() search.Strategy {
	return search.StrategyNeuralSparse
}

// Retrieve encodes queryText into weighted terms and searches.
func (r *NeuralSparseRetriever) Retrieve(ctx context.Context, queryText string, limit int) (search.RetrievalResult, error) {
	var hits []store.Hit

	err := guard(r.Strategy(), r.opts.Breaker, func() error {
		terms, err := r.encoder.Encode(ctx, queryText)
		if err != nil {
			return fuseerrors.New(fuseerrors.ErrCodeEncodingFailed, "query encoding failed", err)
		}
		if len(terms) == 0 {
			hits = nil
			return nil
		}

		hits, err = r.backend.NeuralSparseSearch(ctx, terms, limit*r.opts.overfetch())
		return err
	})
	if err != nil {
		return nil, failure(ctx, r.Strategy(), err)
	}

	return toResult(r.Strategy(), hits, r.opts.MinScore, limit), nil
}
