package encode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// HTTP encoder constants.
const (
	// DefaultEncodeTimeout bounds a single encode request.
	DefaultEncodeTimeout = 10 * time.Second

	encodePath = "/encode"
)

// HTTPEncoder calls an external learned sparse encoder service. The service
// accepts {"text": ...} and returns {"model": ..., "terms": [{"term": ...,
// "weight": ...}]}.
type HTTPEncoder struct {
	client   *http.Client
	endpoint string
	maxTerms int

	modelName string
}

var _ Encoder = (*HTTPEncoder)(nil)

// encodeRequest is the service request body.
type encodeRequest struct {
	Text string `json:"text"`
}

// encodeResponse is the service response body.
type encodeResponse struct {
	Model string `json:"model"`
	Terms []Term `json:"terms"`
}

// NewHTTPEncoder creates an encoder client for the given service endpoint.
func NewHTTPEncoder(endpoint string, maxTerms int) *HTTPEncoder {
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}
	return &HTTPEncoder{
		client:   &http.Client{Timeout: DefaultEncodeTimeout},
		endpoint: endpoint,
		maxTerms: maxTerms,

		modelName: "http:" + endpoint,
	}
}

// Encode posts the text to the encoder service and returns its weighted
// terms, heaviest first, capped at maxTerms.
func (e *HTTPEncoder) Encode(ctx context.Context, text string) ([]Term, error) {
	body, err := json.Marshal(encodeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+encodePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("encoder service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode encoder response: %w", err)
	}

	if result.Model != "" {
		e.modelName = result.Model
	}

	terms := make([]Term, 0, len(result.Terms))
	for _, t := range result.Terms {
		if t.Text == "" || t.Weight <= 0 {
			continue
		}
		terms = append(terms, t)
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

	return terms, nil
}

// ModelName returns the encoder identifier reported by the service, or the
// endpoint until the first successful call.
func (e *HTTPEncoder) ModelName() string {
	return e.modelName
}
