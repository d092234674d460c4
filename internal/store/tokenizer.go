package store

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex keeps part-number separators inside a token for the initial
// split, so "RAD-5083" survives as one unit before sub-splitting.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9\-\./]*[a-zA-Z0-9]|[a-zA-Z0-9]`)

// TokenizeProduct splits catalog text with part-number-aware rules.
// Compound identifiers yield both the full lowercased identifier and their
// letter/digit pieces, so "RAD-5083" matches queries for "rad-5083",
// "rad" or "5083". Tokens shorter than 2 chars are dropped.
func TokenizeProduct(text string) []string {
	var tokens []string

	words := tokenRegex.FindAllString(text, -1)

	for _, word := range words {
		lower := strings.ToLower(word)
		pieces := SplitPartNumber(lower)

		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
		if len(pieces) > 1 {
			for _, p := range pieces {
				if len(p) >= 2 {
					tokens = append(tokens, p)
				}
			}
		}
	}

	return tokens
}

// SplitPartNumber splits an identifier at separators and letter/digit
// boundaries: "rad-5083" -> ["rad", "5083"], "hyp220479" -> ["hyp", "220479"].
func SplitPartNumber(token string) []string {
	if token == "" {
		return []string{}
	}

	result := []string{}
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			result = append(result, current.String())
			current.Reset()
		}
	}

	runes := []rune(token)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && current.Len() > 0 {
			prev := runes[i-1]
			if (unicode.IsLetter(prev) || unicode.IsDigit(prev)) &&
				unicode.IsDigit(prev) != unicode.IsDigit(r) {
				flush()
			}
		}
		current.WriteRune(r)
	}
	flush()

	return result
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, isStop := stopWords[lower]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
