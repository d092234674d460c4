// Package retrieval adapts the index backend to the search engine's
// Retriever contract: one adapter per strategy, each translating the query
// into its backend call and normalizing hits and failures.
package retrieval

import (
	"context"
	"errors"
	"sort"

	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
)

// DefaultOverfetch widens the backend fetch so fusion has candidates beyond
// the requested limit to promote.
const DefaultOverfetch = 3

// Options tune an adapter.
type Options struct {
	// Overfetch multiplies the backend fetch size. Default: 3.
	Overfetch int

	// MinScore drops hits scoring below it. Zero disables the floor, so
	// negative cosine similarities still pass through.
	MinScore float64

	// Breaker short-circuits calls while the backend is failing.
	// Nil disables breaking.
	Breaker *fuseerrors.CircuitBreaker
}

func (o Options) overfetch() int {
	if o.Overfetch <= 0 {
		return DefaultOverfetch
	}
	return o.Overfetch
}

// guard runs fn under the adapter's circuit breaker, mapping an open
// circuit onto a backend-unavailable retrieval failure.
func guard(strategy search.Strategy, breaker *fuseerrors.CircuitBreaker, fn func() error) error {
	if breaker == nil {
		return fn()
	}
	err := breaker.Execute(fn)
	if errors.Is(err, fuseerrors.ErrCircuitOpen) {
		return search.NewRetrievalError(strategy, search.RetrievalBackendUnavailable, err)
	}
	return err
}

// classify maps a backend failure onto a retrieval error kind.
func classify(ctx context.Context, err error) search.RetrievalErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return search.RetrievalTimeout
	}

	var mismatch store.ErrDimensionMismatch
	if errors.As(err, &mismatch) {
		return search.RetrievalInvalidQuery
	}

	var fe *fuseerrors.FuseError
	if errors.As(err, &fe) {
		switch fe.Code {
		case fuseerrors.ErrCodeBackendTimeout:
			return search.RetrievalTimeout
		case fuseerrors.ErrCodeInvalidQuery, fuseerrors.ErrCodeDimensionMismatch:
			return search.RetrievalInvalidQuery
		}
	}

	return search.RetrievalBackendUnavailable
}

// failure wraps err as the strategy's retrieval failure unless it already
// is one.
func failure(ctx context.Context, strategy search.Strategy, err error) error {
	var re *search.RetrievalError
	if errors.As(err, &re) {
		return re
	}
	return search.NewRetrievalError(strategy, classify(ctx, err), err)
}

// toResult converts backend hits into an ordered RetrievalResult: minimum
// score applied when a floor is configured, duplicates collapsed onto their
// best score, sorted by descending score with ascending DocID tie-break,
// truncated to limit.
func toResult(strategy search.Strategy, hits []store.Hit, minScore float64, limit int) search.RetrievalResult {
	best := make(map[string]float64, len(hits))
	for _, h := range hits {
		if h.DocID == "" {
			continue
		}
		if minScore > 0 && h.Score < minScore {
			continue
		}
		if s, ok := best[h.DocID]; !ok || h.Score > s {
			best[h.DocID] = h.Score
		}
	}

	result := make(search.RetrievalResult, 0, len(best))
	for id, score := range best {
		result = append(result, search.ScoredDocument{
			DocID:    id,
			Score:    score,
			Strategy: strategy,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
