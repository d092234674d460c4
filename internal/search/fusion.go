package search

import (
	"math"
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// FusionEngine merges per-strategy result lists into one ranking.
//
// Two modes are supported:
//
//   - Rank-based (reciprocal rank, the default):
//     fused_score(d) = Σ weight[s] / (k + rank[s][d])
//     Strategies a document is absent from contribute nothing. Rank fusion
//     tolerates incomparable raw score scales, which is why it is the
//     default when lexical and semantic strategies are mixed.
//
//   - Weighted-score:
//     fused_score(d) = Σ weight[s] * minmax(score[s][d])
//     Each strategy's scores are min-max normalized to [0,1] before
//     combining. A document missing from a strategy contributes 0 there.
//
// The engine is stateless apart from its constant and safe for concurrent
// use.
type FusionEngine struct {
	K int // RRF smoothing constant (default: 60)
}

// NewFusionEngine creates a fusion engine with default k=60.
func NewFusionEngine() *FusionEngine {
	return &FusionEngine{K: DefaultRRFConstant}
}

// NewFusionEngineWithK creates a fusion engine with a custom k value.
// If k <= 0, defaults to 60.
func NewFusionEngineWithK(k int) *FusionEngine {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &FusionEngine{K: k}
}

// Fuse merges the per-strategy results into a single ranking, deduplicated
// by document ID and truncated to limit after full fusion and sorting.
// Truncating per-strategy lists beforehand is forbidden: a document ranked
// low in each list can still fuse to the top.
//
// Malformed strategy inputs (empty document IDs, NaN or infinite scores)
// are dropped from fusion and reported in the second return value; they
// never abort the merge. limit <= 0 means no truncation.
func (f *FusionEngine) Fuse(
	results map[Strategy]RetrievalResult,
	weights Weights,
	mode FusionMode,
	limit int,
) (FusedResult, []*FusionInputError) {
	clean, dropped := validateInputs(results)
	if len(clean) == 0 {
		return FusedResult{}, dropped
	}

	var fused FusedResult
	if mode == FusionWeighted {
		fused = f.fuseWeighted(clean, weights)
	} else {
		fused = f.fuseRRF(clean, weights)
	}

	sortRanking(fused)

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, dropped
}

// fuseRRF applies reciprocal rank fusion. Ranks are 1-indexed.
func (f *FusionEngine) fuseRRF(results map[Strategy]RetrievalResult, weights Weights) FusedResult {
	merged := make(map[string]*RankedDocument)
	for _, strategy := range orderedStrategies(results) {
		list := results[strategy]
		w := weightFor(weights, strategy)
		for i, doc := range list {
			rank := i + 1
			rd := getOrCreate(merged, doc.DocID)
			rd.FusedScore += w / float64(f.K+rank)
			rd.Ranks[strategy] = rank
		}
	}
	return flatten(merged)
}

// fuseWeighted min-max normalizes each strategy's scores, then combines
// linearly. A degenerate list (all scores equal) normalizes to 1.0 so a
// single-result strategy still contributes its full weight.
func (f *FusionEngine) fuseWeighted(results map[Strategy]RetrievalResult, weights Weights) FusedResult {
	merged := make(map[string]*RankedDocument)
	for _, strategy := range orderedStrategies(results) {
		list := results[strategy]
		w := weightFor(weights, strategy)
		lo, hi := scoreRange(list)
		for i, doc := range list {
			norm := 1.0
			if hi > lo {
				norm = (doc.Score - lo) / (hi - lo)
			}
			rd := getOrCreate(merged, doc.DocID)
			rd.FusedScore += w * norm
			rd.Ranks[strategy] = i + 1
		}
	}
	return flatten(merged)
}

// orderedStrategies returns the result map's keys in canonical strategy
// order. Accumulating fused scores in map iteration order would make the
// floating-point sums run-dependent in the last ulp.
func orderedStrategies(results map[Strategy]RetrievalResult) []Strategy {
	ordered := make([]Strategy, 0, len(results))
	for _, s := range AllStrategies() {
		if _, ok := results[s]; ok {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) < len(results) {
		known := make(map[Strategy]bool, len(ordered))
		for _, s := range ordered {
			known[s] = true
		}
		var rest []Strategy
		for s := range results {
			if !known[s] {
				rest = append(rest, s)
			}
		}
		sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
		ordered = append(ordered, rest...)
	}
	return ordered
}

// validateInputs drops strategies whose result lists are malformed.
func validateInputs(results map[Strategy]RetrievalResult) (map[Strategy]RetrievalResult, []*FusionInputError) {
	clean := make(map[Strategy]RetrievalResult, len(results))
	var dropped []*FusionInputError
	for strategy, list := range results {
		if reason := malformed(list); reason != "" {
			dropped = append(dropped, &FusionInputError{Strategy: strategy, Reason: reason})
			continue
		}
		clean[strategy] = list
	}
	return clean, dropped
}

func malformed(list RetrievalResult) string {
	for _, doc := range list {
		if doc.DocID == "" {
			return "empty document id"
		}
		if math.IsNaN(doc.Score) || math.IsInf(doc.Score, 0) {
			return "non-finite score"
		}
	}
	return ""
}

func weightFor(weights Weights, strategy Strategy) float64 {
	if w, ok := weights[strategy]; ok {
		return w
	}
	return 1.0
}

func scoreRange(list RetrievalResult) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, doc := range list {
		lo = math.Min(lo, doc.Score)
		hi = math.Max(hi, doc.Score)
	}
	return lo, hi
}

func getOrCreate(m map[string]*RankedDocument, id string) *RankedDocument {
	if rd, ok := m[id]; ok {
		return rd
	}
	rd := &RankedDocument{
		DocID: id,
		Ranks: make(map[Strategy]int, 2),
	}
	m[id] = rd
	return rd
}

// flatten materializes the merged map, filling in the sorted provenance
// list for each document.
func flatten(merged map[string]*RankedDocument) FusedResult {
	out := make(FusedResult, 0, len(merged))
	for _, rd := range merged {
		rd.Strategies = make([]Strategy, 0, len(rd.Ranks))
		for s := range rd.Ranks {
			rd.Strategies = append(rd.Strategies, s)
		}
		sort.Slice(rd.Strategies, func(i, j int) bool {
			return rd.Strategies[i] < rd.Strategies[j]
		})
		out = append(out, *rd)
	}
	return out
}

// sortRanking orders by fused score descending, breaking ties by lowest
// minimum per-strategy rank, then by document ID ascending. The ordering
// is total, so fusion output is deterministic regardless of the arrival
// order of strategy results.
func sortRanking(fused FusedResult) {
	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		ar, br := a.minRank(), b.minRank()
		if ar != br {
			return ar < br
		}
		return a.DocID < b.DocID
	})
}
