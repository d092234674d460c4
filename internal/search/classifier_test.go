package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PartNumberClassifier Tests
// =============================================================================

func TestClassifyPartNumbers(t *testing.T) {
	c := NewPartNumberClassifier(0.6)

	tests := []struct {
		name  string
		query string
	}{
		{name: "known prefix with digit run", query: "HYP220479"},
		{name: "dashed part number", query: "RAD-5083"},
		{name: "labelled part number", query: "model: X200"},
		{name: "alternating runs", query: "AB12CD34"},
		{name: "short prefix", query: "NI8245"},
		{name: "suffix variant", query: "KOI220XL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := c.Classify(tt.query)
			assert.Equal(t, CategoryPartNumber, decision.Category,
				"query %q should classify as a part number", tt.query)
			assert.GreaterOrEqual(t, decision.Confidence, 0.6)
			assert.LessOrEqual(t, decision.Confidence, 1.0)
		})
	}
}

func TestClassifyNaturalLanguage(t *testing.T) {
	c := NewPartNumberClassifier(0.6)

	tests := []struct {
		name        string
		query       string
		wantPattern string
	}{
		{name: "no digits", query: "waterproof jacket", wantPattern: "no_digits"},
		{name: "too short", query: "ab1", wantPattern: "too_short"},
		{name: "search phrase", query: "best price for hydraulic pump 220", wantPattern: "search_phrase"},
		{name: "document reference", query: "page 12", wantPattern: "document_reference"},
		{name: "table reference", query: "table 220479 of the manual", wantPattern: "document_reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := c.Classify(tt.query)
			assert.Equal(t, CategoryNaturalLanguage, decision.Category)
			assert.Equal(t, tt.wantPattern, decision.MatchedPattern)
			assert.InDelta(t, 1.0, decision.Confidence, 0.001)
		})
	}
}

func TestClassifyConsumerProduct(t *testing.T) {
	// Digits and a typical length, but the consumer product penalty keeps
	// the vote below the routing threshold.
	c := NewPartNumberClassifier(0.6)

	decision := c.Classify("iphone 15")

	assert.Equal(t, CategoryNaturalLanguage, decision.Category)
	assert.InDelta(t, 0.61, decision.Confidence, 0.01)
}

func TestClassifyEmptyQuery(t *testing.T) {
	c := NewPartNumberClassifier(0.6)

	for _, query := range []string{"", "   ", "\t\n"} {
		decision := c.Classify(query)
		assert.Equal(t, CategoryUnknown, decision.Category)
		assert.Zero(t, decision.Confidence)
	}
}

func TestClassifyConfidenceRange(t *testing.T) {
	c := NewPartNumberClassifier(0.6)

	queries := []string{
		"HYP220479", "RAD-5083", "iphone 15", "waterproof jacket",
		"p/n: 4711", "MIL-SPEC-810G", "find a pump", "1234",
	}
	for _, q := range queries {
		decision := c.Classify(q)
		assert.GreaterOrEqual(t, decision.Confidence, 0.0, "query %q", q)
		assert.LessOrEqual(t, decision.Confidence, 1.0, "query %q", q)
	}
}

func TestClassifyMatchedPattern(t *testing.T) {
	c := NewPartNumberClassifier(0.6)

	decision := c.Classify("HYP220479")

	require.Equal(t, CategoryPartNumber, decision.Category)
	assert.Equal(t, "known_prefix", decision.MatchedPattern)
}

func TestClassifyThresholdOverride(t *testing.T) {
	// A stricter threshold flips borderline queries to natural language.
	strict := NewPartNumberClassifier(0.99)
	loose := NewPartNumberClassifier(0.3)

	query := "9005 pump"

	strictDecision := strict.Classify(query)
	looseDecision := loose.Classify(query)

	assert.Equal(t, CategoryNaturalLanguage, strictDecision.Category)
	assert.Equal(t, CategoryPartNumber, looseDecision.Category)
}

func TestClassifyInvalidThresholdFallsBack(t *testing.T) {
	for _, threshold := range []float64{-0.5, 0, 1.5} {
		c := NewPartNumberClassifier(threshold)
		assert.InDelta(t, 0.6, c.Threshold(), 0.001)
	}
}

func TestClassifyCachesDecisions(t *testing.T) {
	c := NewPartNumberClassifier(0.6)

	first := c.Classify("HYP220479")
	second := c.Classify("HYP220479")

	assert.Equal(t, first, second)
	_, ok := c.cache.Get("HYP220479")
	assert.True(t, ok)
}

func TestClassifyDeterministic(t *testing.T) {
	// Same text always produces the same decision regardless of
	// surrounding whitespace.
	c := NewPartNumberClassifier(0.6)

	base := c.Classify("RAD-5083")
	padded := c.Classify("  RAD-5083  ")

	assert.Equal(t, base, padded)
}
