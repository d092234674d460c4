package encode

import (
	"fmt"
	"strings"

	"github.com/searchworks/partfuse/internal/config"
)

// NewEncoder creates an encoder from configuration. Provider "static" needs
// nothing external; "http" requires an endpoint.
func NewEncoder(cfg config.EncoderConfig) (Encoder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "static", "":
		return NewStaticEncoder(cfg.MaxTerms), nil

	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("encoder provider http requires an endpoint")
		}
		return NewHTTPEncoder(cfg.Endpoint, cfg.MaxTerms), nil

	default:
		return nil, fmt.Errorf("unknown encoder provider %q", cfg.Provider)
	}
}
