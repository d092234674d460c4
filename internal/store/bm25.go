package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/searchworks/partfuse/internal/encode"
)

const (
	// ProductTokenizerName is the name of our part-number-aware tokenizer.
	ProductTokenizerName = "product_tokenizer"

	// ProductStopFilterName is the name of our catalog stop word filter.
	ProductStopFilterName = "product_stop"

	// ProductAnalyzerName is the name of our product analyzer.
	ProductAnalyzerName = "product_analyzer"

	// partFieldBoost favors part-number matches over description matches.
	partFieldBoost = 2.0
)

func init() {
	// Register custom tokenizer
	_ = registry.RegisterTokenizer(ProductTokenizerName, productTokenizerConstructor)

	// Register custom stop word filter
	_ = registry.RegisterTokenFilter(ProductStopFilterName, productStopFilterConstructor)
}

// BleveSparseIndex wraps Bleve v2 for BM25 retrieval over the product
// catalog. It serves both plain lexical search and weighted-term
// (neural-sparse) search against the same index.
type BleveSparseIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	path      string
	config    SparseConfig
	closed    bool
	stopWords map[string]struct{}
}

// BleveProduct is the document structure for Bleve indexing.
type BleveProduct struct {
	Part        string `json:"part"`
	Description string `json:"description"`
}

// validateIndexIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateIndexIntegrity(path string) error {
	// Check if index directory exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	// Check 1: index_meta.json exists and is non-empty
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	// Check 2: Validate JSON is parseable
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveSparseIndex creates or opens a sparse index.
// If path is empty, creates an in-memory index. Corrupted on-disk indexes
// are cleared and recreated, pending a reindex.
func NewBleveSparseIndex(path string, config SparseConfig) (*BleveSparseIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		// In-memory index for testing
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		// Create directory if needed
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("sparse_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("sparse index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("sparse_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		// Try to open existing index first
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("sparse_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("sparse index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("sparse_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, please reindex"))

			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveSparseIndex{
		index:     idx,
		path:      path,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}, nil
}

// createIndexMapping creates the Bleve index mapping with the product analyzer.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	// Register custom analyzer
	err := indexMapping.AddCustomAnalyzer(ProductAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": ProductTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			ProductStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	// Set as default analyzer
	indexMapping.DefaultAnalyzer = ProductAnalyzerName

	return indexMapping, nil
}

// Index adds products to the index.
func (b *BleveSparseIndex) Index(ctx context.Context, docs []ProductDoc) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		part := doc.Product.PartNumber
		if doc.Product.MfrPartNumber != "" {
			part += " " + doc.Product.MfrPartNumber
		}
		bleveDoc := BleveProduct{
			Part:        part,
			Description: strings.TrimSpace(doc.Product.Description + " " + doc.Product.Brand),
		}
		if err := batch.Index(doc.ID, bleveDoc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// SparseSearch runs lexical BM25 retrieval over the query terms.
func (b *BleveSparseIndex) SparseSearch(ctx context.Context, terms []string, limit int) ([]Hit, error) {
	queryStr := strings.TrimSpace(strings.Join(terms, " "))
	if queryStr == "" {
		return []Hit{}, nil
	}

	// Part matches outrank description matches for the same terms
	partQuery := bleve.NewMatchQuery(queryStr)
	partQuery.SetField("part")
	partQuery.SetBoost(partFieldBoost)

	descQuery := bleve.NewMatchQuery(queryStr)
	descQuery.SetField("description")

	return b.run(ctx, bleve.NewDisjunctionQuery(partQuery, descQuery), limit)
}

// NeuralSparseSearch retrieves by a disjunction of per-term queries boosted
// by the learned term weights.
func (b *BleveSparseIndex) NeuralSparseSearch(ctx context.Context, terms []encode.Term, limit int) ([]Hit, error) {
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	clauses := make([]query.Query, 0, len(terms)*2)
	for _, t := range terms {
		if t.Text == "" || t.Weight <= 0 {
			continue
		}

		partQuery := bleve.NewTermQuery(t.Text)
		partQuery.SetField("part")
		partQuery.SetBoost(t.Weight * partFieldBoost)
		clauses = append(clauses, partQuery)

		descQuery := bleve.NewTermQuery(t.Text)
		descQuery.SetField("description")
		descQuery.SetBoost(t.Weight)
		clauses = append(clauses, descQuery)
	}
	if len(clauses) == 0 {
		return []Hit{}, nil
	}

	return b.run(ctx, bleve.NewDisjunctionQuery(clauses...), limit)
}

// run executes a query and converts hits.
func (b *BleveSparseIndex) run(ctx context.Context, q query.Query, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if limit <= 0 {
		return []Hit{}, nil
	}

	searchRequest := bleve.NewSearchRequest(q)
	searchRequest.Size = limit

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, Hit{
			DocID: hit.ID,
			Score: hit.Score,
		})
	}

	return hits, nil
}

// Delete removes documents from the index.
func (b *BleveSparseIndex) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// DocCount returns the number of indexed products.
func (b *BleveSparseIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	count, _ := b.index.DocCount()
	return int(count)
}

// Close closes the index.
func (b *BleveSparseIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// productTokenizerConstructor creates the product tokenizer for Bleve.
func productTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveProductTokenizer{}, nil
}

// bleveProductTokenizer implements analysis.Tokenizer for part-number-aware
// tokenization.
type bleveProductTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveProductTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeProduct(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Find token position in original text (case-insensitive search)
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// productStopFilterConstructor creates the catalog stop word filter for Bleve.
func productStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveProductStopFilter{
		stopWords: BuildStopWordMap(DefaultCatalogStopWords),
	}, nil
}

// bleveProductStopFilter implements analysis.TokenFilter for catalog stop words.
type bleveProductStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveProductStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
