// Package search implements the partfuse query core: part-number
// classification, parallel retrieval fan-out across strategies, result
// fusion (Reciprocal Rank Fusion or weighted scores), and the fused-result
// cache.
package search

import (
	"context"
	"fmt"
	"time"
)

// Strategy identifies one retrieval strategy.
type Strategy string

const (
	// StrategyDense is embedding-similarity retrieval.
	StrategyDense Strategy = "dense"
	// StrategySparse is lexical BM25 retrieval.
	StrategySparse Strategy = "sparse"
	// StrategyNeuralSparse is learned sparse term-weight retrieval.
	StrategyNeuralSparse Strategy = "neural_sparse"
)

// AllStrategies lists every known strategy in canonical order.
func AllStrategies() []Strategy {
	return []Strategy{StrategyDense, StrategySparse, StrategyNeuralSparse}
}

// ParseStrategy converts a string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyDense, StrategySparse, StrategyNeuralSparse:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// FusionMode selects how per-strategy result lists are combined.
type FusionMode string

const (
	// FusionRRF is rank-based reciprocal-rank fusion. It is the default
	// because per-strategy scores live on incomparable scales.
	FusionRRF FusionMode = "rrf"
	// FusionWeighted combines min-max normalized scores with per-strategy
	// weights.
	FusionWeighted FusionMode = "weighted"
)

// ParseFusionMode converts a string into a FusionMode. Empty selects RRF.
func ParseFusionMode(s string) (FusionMode, error) {
	switch FusionMode(s) {
	case "":
		return FusionRRF, nil
	case FusionRRF, FusionWeighted:
		return FusionMode(s), nil
	}
	return "", fmt.Errorf("unknown fusion mode %q", s)
}

// Weights maps strategies to fusion weights.
type Weights map[Strategy]float64

// DefaultWeights returns equal weights for all strategies.
func DefaultWeights() Weights {
	return Weights{
		StrategyDense:        1.0,
		StrategySparse:       1.0,
		StrategyNeuralSparse: 1.0,
	}
}

// Query is one immutable search request.
type Query struct {
	// Text is the raw query text.
	Text string

	// Limit is the requested result count. Zero means the configured
	// default.
	Limit int

	// Strategies overrides classifier-driven strategy selection when
	// non-empty.
	Strategies []Strategy

	// FusionMode overrides the configured fusion mode when non-empty.
	FusionMode FusionMode

	// Weights overrides the configured fusion weights when non-nil.
	Weights Weights
}

// ScoredDocument is one hit from a single retrieval strategy.
// Scores are strategy-local and must never be compared across strategies
// without normalization or rank-based fusion.
type ScoredDocument struct {
	DocID    string   `json:"doc_id"`
	Score    float64  `json:"score"`
	Strategy Strategy `json:"strategy"`
}

// RetrievalResult is the ordered hit list from one strategy, sorted by
// descending score with ascending DocID as tie-break.
type RetrievalResult []ScoredDocument

// RankedDocument is one fused result with provenance.
type RankedDocument struct {
	DocID      string  `json:"doc_id"`
	FusedScore float64 `json:"fused_score"`

	// Strategies records which strategies contributed this document,
	// in canonical order.
	Strategies []Strategy `json:"strategies"`

	// Ranks is the 1-based rank of the document in each contributing
	// strategy's list.
	Ranks map[Strategy]int `json:"ranks"`

	// Product is the catalog payload, populated during enrichment.
	// Nil when the document is missing from the catalog.
	Product *Product `json:"product,omitempty"`
}

// minRank returns the best (lowest) per-strategy rank.
func (d *RankedDocument) minRank() int {
	min := int(^uint(0) >> 1)
	for _, r := range d.Ranks {
		if r < min {
			min = r
		}
	}
	return min
}

// FusedResult is the deduplicated, fused ranking.
// Invariants: DocID is unique; ordering is by descending FusedScore, then
// lowest minimum per-strategy rank, then ascending DocID.
type FusedResult []RankedDocument

// Product is the catalog payload attached to fused results.
type Product struct {
	PartNumber    string  `json:"part_number"`
	MfrPartNumber string  `json:"mfr_part_number,omitempty"`
	Description   string  `json:"description"`
	Brand         string  `json:"brand,omitempty"`
	Price         float64 `json:"price,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
}

// Category is the classification outcome for a query.
type Category string

const (
	// CategoryPartNumber marks queries shaped like part identifiers.
	CategoryPartNumber Category = "part_number"
	// CategoryNaturalLanguage marks descriptive queries.
	CategoryNaturalLanguage Category = "natural_language"
	// CategoryUnknown marks empty or malformed queries.
	CategoryUnknown Category = "unknown"
)

// ClassificationDecision is the classifier output.
type ClassificationDecision struct {
	Category       Category `json:"category"`
	Confidence     float64  `json:"confidence"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
}

// Classifier decides how a query should be routed.
type Classifier interface {
	Classify(query string) ClassificationDecision
}

// Retriever executes one retrieval strategy.
// Implementations are pure translators over the index backend: no shared
// mutable state, safe for concurrent use.
type Retriever interface {
	// Strategy identifies which strategy this retriever serves.
	Strategy() Strategy

	// Retrieve returns at most limit documents sorted by descending
	// score (DocID ascending for ties). Failures are reported as
	// *RetrievalError.
	Retrieve(ctx context.Context, queryText string, limit int) (RetrievalResult, error)
}

// Catalog looks up product payloads for result enrichment.
type Catalog interface {
	Products(ctx context.Context, ids []string) (map[string]Product, error)
}

// Info is the per-request metadata attached to a response.
type Info struct {
	// Strategies are the strategies actually attempted.
	Strategies []Strategy `json:"strategies"`

	// FailedStrategies lists strategies excluded by failure or timeout.
	FailedStrategies []Strategy `json:"failed_strategies,omitempty"`

	// Degraded is true when the result was fused from a strict subset
	// of the attempted strategies.
	Degraded bool `json:"degraded"`

	// CacheHit is true when the fused result came from the cache.
	CacheHit bool `json:"cache_hit"`

	// FusionMode is the mode used for this request.
	FusionMode FusionMode `json:"fusion_mode"`

	// Classification is the routing decision for this query.
	Classification ClassificationDecision `json:"classification"`

	// StrategyLatency records wall time per attempted strategy.
	StrategyLatency map[Strategy]time.Duration `json:"strategy_latency,omitempty"`

	// StrategyHits records raw hit counts per successful strategy.
	StrategyHits map[Strategy]int `json:"strategy_hits,omitempty"`

	// Elapsed is the total request wall time.
	Elapsed time.Duration `json:"elapsed"`
}

// Response pairs the fused ranking with request metadata.
type Response struct {
	Results FusedResult `json:"results"`
	Info    Info        `json:"info"`
}
