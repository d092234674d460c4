package encode

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// StaticEncoder produces term weights from surface features alone, with no
// corpus statistics and no model download. It stands in for a learned sparse
// encoder when none is deployed: identifier-like tokens (the ones a learned
// model would weight highest for product search) get the most mass, filler
// words get none.
type StaticEncoder struct {
	maxTerms int
}

// Surface-feature weights.
const (
	baseTermWeight   = 1.0
	digitBonus       = 1.0 // tokens carrying digits are usually part numbers
	identifierBonus  = 0.5 // mixed letter+digit tokens
	longTokenBonus   = 0.25
	longTokenMinLen  = 6
	repeatDampFactor = 0.5 // diminishing weight for repeated terms
)

var encodeTokenRegex = regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9\-\./]*[a-zA-Z0-9]|[a-zA-Z0-9]`)

// encodeStopWords are dropped entirely; a learned encoder assigns these
// near-zero weights.
var encodeStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true,
	"for": true, "to": true, "with": true, "by": true, "and": true,
	"or": true, "is": true, "are": true, "this": true, "that": true,
}

// NewStaticEncoder creates a static encoder capped at maxTerms terms.
func NewStaticEncoder(maxTerms int) *StaticEncoder {
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}
	return &StaticEncoder{maxTerms: maxTerms}
}

var _ Encoder = (*StaticEncoder)(nil)

// Encode returns weighted terms for the text, heaviest first. Weights are
// normalized so the heaviest term is 1.0.
func (e *StaticEncoder) Encode(_ context.Context, text string) ([]Term, error) {
	raw := encodeTokenRegex.FindAllString(text, -1)
	if len(raw) == 0 {
		return []Term{}, nil
	}

	weights := make(map[string]float64)
	seen := make(map[string]int)

	for _, tok := range raw {
		term := strings.ToLower(tok)
		if encodeStopWords[term] {
			continue
		}

		w := termWeight(term)

		// Repeats add diminishing mass, not linear mass
		n := seen[term]
		weights[term] += w * math.Pow(repeatDampFactor, float64(n))
		seen[term] = n + 1

		// A part number like RAD-5083 also contributes its pieces, so
		// the disjunction can match documents that store them split
		for _, piece := range splitCompound(term) {
			if piece == term || encodeStopWords[piece] {
				continue
			}
			weights[piece] += termWeight(piece) * repeatDampFactor
		}
	}

	if len(weights) == 0 {
		return []Term{}, nil
	}

	terms := make([]Term, 0, len(weights))
	maxW := 0.0
	for t, w := range weights {
		terms = append(terms, Term{Text: t, Weight: w})
		if w > maxW {
			maxW = w
		}
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Text < terms[j].Text
	})

	if len(terms) > e.maxTerms {
		terms = terms[:e.maxTerms]
	}

	for i := range terms {
		terms[i].Weight /= maxW
	}

	return terms, nil
}

// ModelName returns the encoder identifier.
func (e *StaticEncoder) ModelName() string {
	return "static"
}

// termWeight scores a single term by surface features.
func termWeight(term string) float64 {
	w := baseTermWeight

	hasDigit := strings.ContainsFunc(term, unicode.IsDigit)
	hasLetter := strings.ContainsFunc(term, unicode.IsLetter)

	if hasDigit {
		w += digitBonus
	}
	if hasDigit && hasLetter {
		w += identifierBonus
	}
	if len(term) >= longTokenMinLen {
		w += longTokenBonus
	}

	return w
}

// splitCompound breaks a separator-joined or mixed identifier into pieces:
// "rad-5083" -> ["rad", "5083"], "hyp220479" -> ["hyp", "220479"].
func splitCompound(term string) []string {
	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 1 { // single chars carry no retrieval signal
			pieces = append(pieces, current.String())
		}
		current.Reset()
	}

	runes := []rune(term)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && current.Len() > 0 {
			prev := runes[i-1]
			if unicode.IsDigit(prev) != unicode.IsDigit(r) {
				flush()
			}
		}
		current.WriteRune(r)
	}
	flush()

	return pieces
}
