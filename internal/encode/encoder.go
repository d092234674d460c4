// Package encode turns query text into weighted terms for neural-sparse
// retrieval. A learned sparse model assigns each term an importance weight;
// the index backend uses the weights as per-term boosts.
package encode

import "context"

// DefaultMaxTerms caps the number of weighted terms per query.
const DefaultMaxTerms = 32

// Term is a single weighted query term.
type Term struct {
	Text   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Encoder expands query text into weighted terms.
type Encoder interface {
	// Encode returns weighted terms for the text, heaviest first.
	// An empty slice means the text carried no encodable signal.
	Encode(ctx context.Context, text string) ([]Term, error)

	// ModelName returns the encoder identifier.
	ModelName() string
}
