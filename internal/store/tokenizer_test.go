package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeProduct(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain description",
			input: "stainless steel valve",
			want:  []string{"stainless", "steel", "valve"},
		},
		{
			name:  "separator part number keeps full token and pieces",
			input: "RAD-5083",
			want:  []string{"rad-5083", "rad", "5083"},
		},
		{
			name:  "mixed identifier splits at letter digit boundary",
			input: "HYP220479",
			want:  []string{"hyp220479", "hyp", "220479"},
		},
		{
			name:  "short pieces dropped",
			input: "E5 pump",
			want:  []string{"e5", "pump"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeProduct(tt.input))
		})
	}
}

func TestSplitPartNumber(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"rad-5083", []string{"rad", "5083"}},
		{"hyp220479", []string{"hyp", "220479"}},
		{"a.b/c", []string{"a", "b", "c"}},
		{"valve", []string{"valve"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPartNumber(tt.input))
		})
	}
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap([]string{"the", "for"})

	assert.Equal(t, []string{"valve", "pump"},
		FilterStopWords([]string{"the", "valve", "FOR", "pump"}, stop))
}
