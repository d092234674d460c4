package search

import (
	"math"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultClassifierCacheSize is the LRU cache size for classification memos.
const DefaultClassifierCacheSize = 512

// Logistic shape mapping the raw signal vote onto a confidence in [0,1].
// A raw vote of 4 lands just above the default 0.6 routing threshold; a
// vote of 3 lands below it.
const (
	confidenceMidpoint = 3.5
	confidenceSlope    = 0.9
)

// Compiled patterns for part number detection.
// Compiled at package init for performance.
var (
	hasDigitPattern  = regexp.MustCompile(`[0-9]`)
	hasLetterPattern = regexp.MustCompile(`[A-Za-z]`)

	// Separators commonly found inside part numbers: ABC-123, 12.5/8
	separatorPattern = regexp.MustCompile(`[\-\./]`)

	// Letters then a digit run: HYP220479, NI8245
	letterDigitPattern = regexp.MustCompile(`^[A-Za-z]{1,3}[0-9]{2,}`)

	startsWithLetterPattern = regexp.MustCompile(`^[A-Za-z]`)

	// Explicit part number labels: "p/n: 4711", "model X200"
	labelledPattern = regexp.MustCompile(`(?i)^(p/n:|part|model|item|no\.)[\s:]+[a-z0-9]`)

	// Alternating alpha-digit runs: AB12CD34
	alternatingPattern = regexp.MustCompile(`([A-Za-z]+[0-9]+){2,}`)

	longDigitRunPattern = regexp.MustCompile(`[0-9]{3,}`)

	// Size/variant suffixes: 220XL, 5083AL, HG12/M, 774EU
	sizeSuffixPattern = regexp.MustCompile(`(?i)[A-Z0-9]+(XL|AL|/[SML]|EU)$`)

	// Document references with a number: "page 12", "table 3"
	docRefStartPattern = regexp.MustCompile(`(?i)^(page|table|figure|section|chapter|room)\s+[0-9]`)

	// Word-set patterns, matched against the lowercased query.
	searchTermPattern = regexp.MustCompile(
		`\b(how|what|where|when|why|find|best|good|better|top|review|price|vs|versus|buy|compare)\b`)
	sentenceWordPattern = regexp.MustCompile(
		`\b(a|an|the|of|in|for|to|with|by|is|are|this|that|these|those)\b`)
	consumerProductPattern = regexp.MustCompile(
		`\b(iphone|macbook|surface|galaxy|kindle|gtx)\b`)
	docRefTermPattern = regexp.MustCompile(
		`\b(page|table|figure|section|chapter|version)\b`)
)

// knownPrefixes are manufacturer prefixes observed in the product catalog.
var knownPrefixes = []string{
	"RAD", "PIP", "MIL", "LIN", "NOR", "MSA", "ESA", "HYP",
	"KOI", "WBU", "CBR", "HOU", "BOS", "VIC", "AMS", "E57",
	"NI",
}

// PartNumberClassifier scores query text with a set of lexical signals and
// maps the combined vote onto a part-number confidence. It performs no I/O
// and is safe for concurrent use.
type PartNumberClassifier struct {
	threshold float64
	cache     *lru.Cache[string, ClassificationDecision]
}

var _ Classifier = (*PartNumberClassifier)(nil)

// NewPartNumberClassifier creates a classifier with the given routing
// threshold. Thresholds outside (0,1] fall back to 0.6.
func NewPartNumberClassifier(threshold float64) *PartNumberClassifier {
	return NewPartNumberClassifierWithCacheSize(threshold, DefaultClassifierCacheSize)
}

// NewPartNumberClassifierWithCacheSize creates a classifier with a custom
// memoization cache size.
func NewPartNumberClassifierWithCacheSize(threshold float64, cacheSize int) *PartNumberClassifier {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}
	if cacheSize <= 0 {
		cacheSize = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, ClassificationDecision](cacheSize)
	return &PartNumberClassifier{
		threshold: threshold,
		cache:     cache,
	}
}

// Threshold returns the routing threshold in use.
func (c *PartNumberClassifier) Threshold() float64 {
	return c.threshold
}

// Classify maps query text to a category and confidence.
// Empty or whitespace-only text yields CategoryUnknown with confidence 0.
func (c *PartNumberClassifier) Classify(text string) ClassificationDecision {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ClassificationDecision{Category: CategoryUnknown, Confidence: 0}
	}

	if cached, ok := c.cache.Get(cleaned); ok {
		return cached
	}

	decision := c.classify(cleaned)
	c.cache.Add(cleaned, decision)
	return decision
}

func (c *PartNumberClassifier) classify(cleaned string) ClassificationDecision {
	lower := strings.ToLower(cleaned)
	words := strings.Fields(cleaned)

	// Early rejections. These are definitive natural language signals and
	// short-circuit with full confidence in the negative class.
	switch {
	case !hasDigitPattern.MatchString(cleaned):
		return naturalLanguage(1, "no_digits")
	case len(cleaned) < 4:
		return naturalLanguage(1, "too_short")
	case len(words) > 2 && searchTermPattern.MatchString(lower):
		return naturalLanguage(1, "search_phrase")
	case docRefStartPattern.MatchString(cleaned):
		return naturalLanguage(1, "document_reference")
	}

	score := 0
	matched := ""
	note := func(signal string) {
		if matched == "" {
			matched = signal
		}
	}

	if hasLetterPattern.MatchString(cleaned) && hasDigitPattern.MatchString(cleaned) {
		score += 3
		note("alphanumeric")
	}
	switch n := len(cleaned); {
	case n >= 5 && n <= 16:
		score += 2
	case n > 16 && n <= 20:
		score++
	}
	if separatorPattern.MatchString(cleaned) {
		score += 2
		note("separator")
	}
	upper := strings.ToUpper(cleaned)
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(upper, prefix) {
			score += 3
			matched = "known_prefix"
			break
		}
	}
	if letterDigitPattern.MatchString(cleaned) {
		score += 2
		note("letter_digit_shape")
	}
	if startsWithLetterPattern.MatchString(cleaned) {
		score++
	}
	if labelledPattern.MatchString(cleaned) {
		score += 2
		note("part_label")
	}
	if alternatingPattern.MatchString(cleaned) {
		score += 2
		note("alternating_runs")
	}
	if longDigitRunPattern.MatchString(cleaned) {
		score++
	}
	if sizeSuffixPattern.MatchString(cleaned) {
		score++
	}

	if searchTermPattern.MatchString(lower) {
		score -= 4
	}
	switch {
	case len(words) >= 4:
		score -= 4
	case len(words) == 3:
		score -= 2
	}
	if sentenceWordPattern.MatchString(lower) {
		score -= 3
	}
	if consumerProductPattern.MatchString(lower) {
		score -= 3
	}
	if docRefTermPattern.MatchString(lower) {
		score -= 3
	}

	confidence := logistic(float64(score))
	if confidence >= c.threshold {
		return ClassificationDecision{
			Category:       CategoryPartNumber,
			Confidence:     confidence,
			MatchedPattern: matched,
		}
	}
	return ClassificationDecision{
		Category:   CategoryNaturalLanguage,
		Confidence: 1 - confidence,
	}
}

// logistic maps the raw integer vote onto [0,1].
func logistic(raw float64) float64 {
	return 1 / (1 + math.Exp(-(raw-confidenceMidpoint)*confidenceSlope))
}

func naturalLanguage(confidence float64, pattern string) ClassificationDecision {
	return ClassificationDecision{
		Category:       CategoryNaturalLanguage,
		Confidence:     confidence,
		MatchedPattern: pattern,
	}
}
