package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/telemetry"
)

// MaxQueryLength bounds accepted query text.
const MaxQueryLength = 512

// EngineConfig holds the query-path tunables.
type EngineConfig struct {
	// FusionMode is the default fusion mode (rrf).
	FusionMode FusionMode

	// RRFConstant is the smoothing constant k for rank fusion.
	RRFConstant int

	// Weights are the default per-strategy fusion weights.
	Weights Weights

	// DefaultLimit is used when a query carries no limit.
	DefaultLimit int

	// MaxLimit caps the per-request limit.
	MaxLimit int

	// StrategyTimeout bounds each retrieval call.
	StrategyTimeout time.Duration

	// RequestTimeout bounds the whole request.
	RequestTimeout time.Duration
}

// DefaultEngineConfig returns the standard query-path settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FusionMode:      FusionRRF,
		RRFConstant:     DefaultRRFConstant,
		Weights:         DefaultWeights(),
		DefaultLimit:    10,
		MaxLimit:        100,
		StrategyTimeout: 2 * time.Second,
		RequestTimeout:  5 * time.Second,
	}
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine runs the full query pipeline: classify, select strategies, fan
// out retrieval calls in parallel, fuse, enrich, cache.
//
// The cache is the only state shared across concurrent requests; all
// other collaborators are stateless or internally synchronized, so Search
// may be called from any number of goroutines.
type Engine struct {
	retrievers map[Strategy]Retriever
	config     EngineConfig
	fusion     *FusionEngine

	// Optional collaborators, set via EngineOption.
	classifier Classifier
	cache      *ResultCache
	catalog    Catalog
	metrics    *telemetry.QueryMetrics
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithClassifier sets the query classifier used for strategy routing.
// Without one, every query fans out to all registered strategies.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithCache sets the fused-result cache.
func WithCache(c *ResultCache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithCatalog sets the product catalog used to enrich fused results.
func WithCatalog(c Catalog) EngineOption {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithMetrics sets the query telemetry collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates the query engine over the given retrievers.
// At least one retriever is required.
func NewEngine(retrievers []Retriever, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("%w: at least one retriever is required", ErrNilDependency)
	}
	byStrategy := make(map[Strategy]Retriever, len(retrievers))
	for _, r := range retrievers {
		if r == nil {
			return nil, fmt.Errorf("%w: nil retriever", ErrNilDependency)
		}
		byStrategy[r.Strategy()] = r
	}

	if config.FusionMode == "" {
		config.FusionMode = FusionRRF
	}
	if config.Weights == nil {
		config.Weights = DefaultWeights()
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	if config.StrategyTimeout <= 0 {
		config.StrategyTimeout = 2 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}

	e := &Engine{
		retrievers: byStrategy,
		config:     config,
		fusion:     NewFusionEngineWithK(config.RRFConstant),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search executes one query end to end.
//
// A failure localized to a single strategy is absorbed: the strategy is
// excluded from fusion and reported through Info.FailedStrategies and
// Info.Degraded. Only invalid query parameters or total retrieval failure
// surface as errors.
func (e *Engine) Search(ctx context.Context, query Query) (*Response, error) {
	start := time.Now()

	text := strings.TrimSpace(query.Text)
	if text == "" {
		return nil, fuseerrors.New(fuseerrors.ErrCodeQueryEmpty,
			"query text is empty", nil)
	}
	if len(text) > MaxQueryLength {
		return nil, fuseerrors.New(fuseerrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query exceeds %d characters", MaxQueryLength), nil).
			WithDetail("length", fmt.Sprintf("%d", len(text)))
	}
	limit, err := e.resolveLimit(query.Limit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	decision, strategies := e.selectStrategies(text, query.Strategies)
	if len(strategies) == 0 {
		return nil, fuseerrors.New(fuseerrors.ErrCodeUnknownStrategy,
			"no requested strategy is available", nil)
	}

	mode := e.config.FusionMode
	if query.FusionMode != "" {
		mode = query.FusionMode
	}
	weights := e.config.Weights
	if query.Weights != nil {
		weights = query.Weights
	}

	var key string
	if e.cache != nil {
		key = CacheKey(text, strategies, mode, weights, limit)
		if cached, ok := e.cache.Get(key); ok {
			resp := &Response{
				Results: cached,
				Info: Info{
					Strategies:     strategies,
					CacheHit:       true,
					FusionMode:     mode,
					Classification: decision,
					Elapsed:        time.Since(start),
				},
			}
			e.recordMetrics(text, decision, resp.Info, len(cached))
			return resp, nil
		}
	}

	results, failures, latencies := e.execute(ctx, text, strategies, limit)

	if len(results) == 0 {
		return nil, &AllStrategiesFailedError{Failures: failures}
	}

	fused, dropped := e.fusion.Fuse(results, weights, mode, limit)
	for _, d := range dropped {
		slog.Warn("dropping malformed fusion input",
			slog.String("strategy", string(d.Strategy)),
			slog.String("reason", d.Reason))
		delete(results, d.Strategy)
		failures[d.Strategy] = d
	}
	if len(results) == 0 {
		return nil, &AllStrategiesFailedError{Failures: failures}
	}

	e.enrich(ctx, fused)

	// Cache only complete rankings. A degraded result would replay as a
	// full one long after the failed strategy recovers.
	if e.cache != nil && len(failures) == 0 {
		e.cache.Put(key, fused)
	}

	info := Info{
		Strategies:       strategies,
		FailedStrategies: sortedStrategies(failures),
		Degraded:         len(failures) > 0,
		FusionMode:       mode,
		Classification:   decision,
		StrategyLatency:  latencies,
		StrategyHits:     hitCounts(results),
		Elapsed:          time.Since(start),
	}
	e.recordMetrics(text, decision, info, len(fused))

	return &Response{Results: fused, Info: info}, nil
}

// resolveLimit validates and defaults the requested result count.
func (e *Engine) resolveLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, fuseerrors.New(fuseerrors.ErrCodeInvalidLimit,
			"limit must not be negative", nil)
	}
	if limit == 0 {
		return e.config.DefaultLimit, nil
	}
	if limit > e.config.MaxLimit {
		return e.config.MaxLimit, nil
	}
	return limit, nil
}

// selectStrategies resolves which strategies to fan out to.
//
// An explicit override wins. Otherwise routing follows the classifier:
// part-number queries go to the lexical strategies (sparse and neural
// sparse), everything else fans out to every registered strategy.
// Strategies with no registered retriever are silently skipped.
func (e *Engine) selectStrategies(text string, override []Strategy) (ClassificationDecision, []Strategy) {
	var decision ClassificationDecision

	var wanted []Strategy
	switch {
	case len(override) > 0:
		wanted = override
		decision = ClassificationDecision{Category: CategoryUnknown}
	case e.classifier != nil:
		decision = e.classifier.Classify(text)
		if decision.Category == CategoryPartNumber {
			wanted = []Strategy{StrategySparse, StrategyNeuralSparse}
		} else {
			wanted = AllStrategies()
		}
	default:
		decision = ClassificationDecision{Category: CategoryUnknown}
		wanted = AllStrategies()
	}

	selected := make([]Strategy, 0, len(wanted))
	for _, s := range wanted {
		if _, ok := e.retrievers[s]; ok {
			selected = append(selected, s)
		}
	}
	return decision, selected
}

// execute fans out one retrieval call per strategy, each bounded by its
// own timeout. A failed strategy never aborts the others.
func (e *Engine) execute(
	ctx context.Context,
	text string,
	strategies []Strategy,
	limit int,
) (map[Strategy]RetrievalResult, map[Strategy]error, map[Strategy]time.Duration) {
	var mu sync.Mutex
	results := make(map[Strategy]RetrievalResult, len(strategies))
	failures := make(map[Strategy]error)
	latencies := make(map[Strategy]time.Duration, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for _, strategy := range strategies {
		retriever := e.retrievers[strategy]
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, e.config.StrategyTimeout)
			defer cancel()

			callStart := time.Now()
			list, err := retriever.Retrieve(sctx, text, limit)
			elapsed := time.Since(callStart)

			mu.Lock()
			defer mu.Unlock()
			latencies[strategy] = elapsed
			if err != nil {
				failures[strategy] = asRetrievalError(strategy, sctx, err)
				slog.Warn("retrieval strategy failed",
					slog.String("strategy", string(strategy)),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()))
				return nil
			}
			results[strategy] = list
			return nil
		})
	}
	// Goroutines never return errors; they record failures per strategy.
	_ = g.Wait()

	return results, failures, latencies
}

// asRetrievalError normalizes a retriever failure into a RetrievalError.
func asRetrievalError(strategy Strategy, ctx context.Context, err error) error {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re
	}
	kind := RetrievalBackendUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = RetrievalTimeout
	}
	return NewRetrievalError(strategy, kind, err)
}

// enrich attaches catalog payloads to the fused ranking. Catalog failures
// only cost the payload, never the ranking.
func (e *Engine) enrich(ctx context.Context, fused FusedResult) {
	if e.catalog == nil || len(fused) == 0 {
		return
	}
	ids := make([]string, len(fused))
	for i := range fused {
		ids[i] = fused[i].DocID
	}
	products, err := e.catalog.Products(ctx, ids)
	if err != nil {
		slog.Warn("catalog enrichment failed", slog.String("error", err.Error()))
		return
	}
	for i := range fused {
		if p, ok := products[fused[i].DocID]; ok {
			product := p
			fused[i].Product = &product
		}
	}
}

func (e *Engine) recordMetrics(text string, decision ClassificationDecision, info Info, resultCount int) {
	if e.metrics == nil {
		return
	}
	names := make([]string, len(info.Strategies))
	for i, s := range info.Strategies {
		names[i] = string(s)
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       text,
		Category:    string(decision.Category),
		Strategies:  names,
		ResultCount: resultCount,
		CacheHit:    info.CacheHit,
		Degraded:    info.Degraded,
		Latency:     info.Elapsed,
		Timestamp:   time.Now(),
	})
	for s, d := range info.StrategyLatency {
		e.metrics.RecordStrategyLatency(string(s), d)
	}
}

func sortedStrategies(failures map[Strategy]error) []Strategy {
	if len(failures) == 0 {
		return nil
	}
	out := make([]Strategy, 0, len(failures))
	for s := range failures {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func hitCounts(results map[Strategy]RetrievalResult) map[Strategy]int {
	counts := make(map[Strategy]int, len(results))
	for s, list := range results {
		counts[s] = len(list)
	}
	return counts
}
