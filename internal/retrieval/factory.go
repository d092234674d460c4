package retrieval

import (
	"time"

	"github.com/searchworks/partfuse/internal/config"
	"github.com/searchworks/partfuse/internal/embed"
	"github.com/searchworks/partfuse/internal/encode"
	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
)

// Build wires one adapter per enabled strategy, each behind its own
// circuit breaker.
func Build(cfg *config.Config, backend store.Backend, embedder embed.Embedder, encoder encode.Encoder) []search.Retriever {
	retrievers := make([]search.Retriever, 0, 3)

	for _, name := range cfg.Search.Strategies {
		strategy := search.Strategy(name)
		opts := Options{
			Overfetch: cfg.Search.WidenFactor,
			Breaker:   newBreaker(string(strategy), cfg.Breaker),
		}

		switch strategy {
		case search.StrategyDense:
			opts.MinScore = cfg.Search.MinDenseScore
			retrievers = append(retrievers, NewDenseRetriever(backend, embedder, opts))
		case search.StrategySparse:
			retrievers = append(retrievers, NewSparseRetriever(backend, opts))
		case search.StrategyNeuralSparse:
			retrievers = append(retrievers, NewNeuralSparseRetriever(backend, encoder, opts))
		}
	}

	return retrievers
}

func newBreaker(name string, cfg config.BreakerConfig) *fuseerrors.CircuitBreaker {
	opts := make([]fuseerrors.CircuitBreakerOption, 0, 2)
	if cfg.MaxFailures > 0 {
		opts = append(opts, fuseerrors.WithMaxFailures(cfg.MaxFailures))
	}
	if d, err := time.ParseDuration(cfg.ResetTimeout); err == nil && d > 0 {
		opts = append(opts, fuseerrors.WithResetTimeout(d))
	}
	return fuseerrors.NewCircuitBreaker(name, opts...)
}
