package encode

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Weighting
// ============================================================================

func TestStaticEncoder_PartNumberOutweighsDescription(t *testing.T) {
	// Given: a query mixing a part number and descriptive words
	encoder := NewStaticEncoder(0)

	// When: the query is encoded
	terms, err := encoder.Encode(context.Background(), "HYP220479 hydraulic pump")
	require.NoError(t, err)
	require.NotEmpty(t, terms)

	// Then: the identifier carries the most weight
	assert.Equal(t, "hyp220479", terms[0].Text)
	assert.Equal(t, 1.0, terms[0].Weight)

	weights := make(map[string]float64)
	for _, term := range terms {
		weights[term.Text] = term.Weight
	}
	assert.Greater(t, weights["hyp220479"], weights["hydraulic"])
	assert.Greater(t, weights["hyp220479"], weights["pump"])
}

func TestStaticEncoder_CompoundIdentifierContributesPieces(t *testing.T) {
	encoder := NewStaticEncoder(0)

	terms, err := encoder.Encode(context.Background(), "RAD-5083")
	require.NoError(t, err)

	texts := make([]string, len(terms))
	for i, term := range terms {
		texts[i] = term.Text
	}
	assert.Contains(t, texts, "rad-5083")
	assert.Contains(t, texts, "rad")
	assert.Contains(t, texts, "5083")
}

func TestStaticEncoder_StopWordsDropped(t *testing.T) {
	encoder := NewStaticEncoder(0)

	terms, err := encoder.Encode(context.Background(), "a valve for the pump")
	require.NoError(t, err)

	for _, term := range terms {
		assert.NotContains(t, []string{"a", "for", "the"}, term.Text)
	}
	assert.Len(t, terms, 2)
}

func TestStaticEncoder_RepeatsAddDiminishingWeight(t *testing.T) {
	encoder := NewStaticEncoder(0)

	once, err := encoder.Encode(context.Background(), "valve pump pump pump")
	require.NoError(t, err)

	weights := make(map[string]float64)
	for _, term := range once {
		weights[term.Text] = term.Weight
	}

	// Three mentions beat one, but stay under triple weight
	assert.Greater(t, weights["pump"], weights["valve"])
	assert.Less(t, weights["pump"]/weights["valve"], 3.0)
}

// ============================================================================
// Output shape
// ============================================================================

func TestStaticEncoder_HeaviestFirstNormalizedToOne(t *testing.T) {
	encoder := NewStaticEncoder(0)

	terms, err := encoder.Encode(context.Background(), "stainless NI8245 bearing kit")
	require.NoError(t, err)
	require.NotEmpty(t, terms)

	assert.Equal(t, 1.0, terms[0].Weight)
	for i := 1; i < len(terms); i++ {
		assert.GreaterOrEqual(t, terms[i-1].Weight, terms[i].Weight)
		assert.Greater(t, terms[i].Weight, 0.0)
		assert.LessOrEqual(t, terms[i].Weight, 1.0)
	}
}

func TestStaticEncoder_MaxTermsCap(t *testing.T) {
	encoder := NewStaticEncoder(3)

	terms, err := encoder.Encode(context.Background(),
		"one4 two55 three666 four7777 five88888 six999999")
	require.NoError(t, err)

	assert.Len(t, terms, 3)
}

func TestStaticEncoder_EmptyAndNoSignal(t *testing.T) {
	encoder := NewStaticEncoder(0)

	for _, text := range []string{"", "   ", "!!! ???", "the of a"} {
		terms, err := encoder.Encode(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, terms, "text %q", text)
	}
}

func TestStaticEncoder_Deterministic(t *testing.T) {
	encoder := NewStaticEncoder(0)
	text := "MIL-2204 sealed radial bearing"

	first, err := encoder.Encode(context.Background(), text)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := encoder.Encode(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSplitCompound(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"rad-5083", []string{"rad", "5083"}},
		{"hyp220479", []string{"hyp", "220479"}},
		{"e57", []string{"57"}}, // single letters dropped
		{"valve", []string{"valve"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCompound(tt.input))
		})
	}
}

func TestStaticEncoder_ModelName(t *testing.T) {
	assert.Equal(t, "static", NewStaticEncoder(0).ModelName())
}

func TestStaticEncoder_LowercasesTerms(t *testing.T) {
	encoder := NewStaticEncoder(0)

	terms, err := encoder.Encode(context.Background(), "VALVE Pump")
	require.NoError(t, err)

	for _, term := range terms {
		assert.Equal(t, strings.ToLower(term.Text), term.Text)
	}
}
