package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/searchworks/partfuse/internal/config"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no network required)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder from configuration.
//
// Provider "ollama" connects to the configured Ollama host; if Ollama is
// unreachable the static embedder is used instead so dense retrieval keeps
// working, just with lower quality. Provider "static" skips the network
// entirely. The result is always wrapped with an LRU cache.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	var embedder Embedder
	var err error

	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderOllama:
		embedder, err = newOllamaWithFallback(ctx, cfg)

	case ProviderStatic, "":
		embedder = NewStaticEmbedder(cfg.Dimensions)

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}

// newOllamaWithFallback creates an Ollama embedder, degrading to the static
// embedder when the Ollama host is unreachable.
func newOllamaWithFallback(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	ollamaCfg := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		ollamaCfg.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		ollamaCfg.Model = cfg.Model
	}
	if cfg.Dimensions > 0 {
		ollamaCfg.Dimensions = cfg.Dimensions
	}

	embedder, err := NewOllamaEmbedder(ctx, ollamaCfg)
	if err != nil {
		slog.Warn("ollama unavailable, using static embeddings",
			slog.String("host", ollamaCfg.Host),
			slog.String("error", err.Error()))
		return NewStaticEmbedder(cfg.Dimensions), nil
	}

	return embedder, nil
}
