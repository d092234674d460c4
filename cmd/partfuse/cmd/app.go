package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/searchworks/partfuse/internal/config"
	"github.com/searchworks/partfuse/internal/embed"
	"github.com/searchworks/partfuse/internal/encode"
	"github.com/searchworks/partfuse/internal/retrieval"
	"github.com/searchworks/partfuse/internal/search"
	"github.com/searchworks/partfuse/internal/store"
	"github.com/searchworks/partfuse/internal/telemetry"
)

// app bundles the wired query stack for the serve and search commands.
type app struct {
	cfg      *config.Config
	backend  *store.EmbeddedBackend
	embedder embed.Embedder
	engine   *search.Engine
	cache    *search.ResultCache
	metrics  *telemetry.QueryMetrics
	watcher  *store.Watcher
}

// buildApp opens the snapshot and wires the engine from config.
// watch additionally arms the snapshot reload watcher (serve only).
func buildApp(ctx context.Context, cfg *config.Config, watch bool) (*app, error) {
	backend, err := store.Open(cfg.Store.Dir, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	encoder, err := encode.NewEncoder(cfg.Encoder)
	if err != nil {
		_ = embedder.Close()
		_ = backend.Close()
		return nil, err
	}

	retrievers := retrieval.Build(cfg, backend, embedder, encoder)

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		_ = embedder.Close()
		_ = backend.Close()
		return nil, err
	}

	a := &app{cfg: cfg, backend: backend, embedder: embedder}

	opts := []search.EngineOption{
		search.WithClassifier(search.NewPartNumberClassifierWithCacheSize(
			cfg.Classifier.Threshold, cfg.Classifier.CacheSize)),
		search.WithCatalog(backend),
	}

	if cfg.Cache.Enabled {
		ttl, err := cfg.CacheTTL()
		if err != nil {
			_ = a.close()
			return nil, err
		}
		a.cache = search.NewResultCache(cfg.Cache.Capacity, ttl)
		opts = append(opts, search.WithCache(a.cache))
	}

	a.metrics, err = buildMetrics(backend)
	if err != nil {
		slog.Warn("telemetry unavailable", slog.String("error", err.Error()))
	} else if a.metrics != nil {
		opts = append(opts, search.WithMetrics(a.metrics))
	}

	a.engine, err = search.NewEngine(retrievers, engineCfg, opts...)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	if watch && cfg.Store.Watch {
		a.watcher, err = store.WatchSnapshot(backend, store.DefaultWatchDebounce, func() {
			if a.cache != nil {
				a.cache.Flush()
			}
		})
		if err != nil {
			_ = a.close()
			return nil, err
		}
	}

	return a, nil
}

// engineConfig translates the yaml config into engine settings.
func engineConfig(cfg *config.Config) (search.EngineConfig, error) {
	mode, err := search.ParseFusionMode(cfg.Search.FusionMode)
	if err != nil {
		return search.EngineConfig{}, err
	}
	strategyTimeout, err := cfg.StrategyTimeout()
	if err != nil {
		return search.EngineConfig{}, err
	}
	requestTimeout, err := cfg.RequestTimeout()
	if err != nil {
		return search.EngineConfig{}, err
	}

	weights := make(search.Weights, len(cfg.Search.Weights))
	for name, w := range cfg.Search.Weights {
		weights[search.Strategy(name)] = w
	}

	return search.EngineConfig{
		FusionMode:      mode,
		RRFConstant:     cfg.Search.RRFConstant,
		Weights:         weights,
		DefaultLimit:    cfg.Search.DefaultLimit,
		MaxLimit:        cfg.Search.MaxLimit,
		StrategyTimeout: strategyTimeout,
		RequestTimeout:  requestTimeout,
	}, nil
}

// buildMetrics persists query stats alongside the catalog.
func buildMetrics(backend *store.EmbeddedBackend) (*telemetry.QueryMetrics, error) {
	catalog := backend.Catalog()
	if catalog == nil {
		return nil, nil
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(catalog.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics store: %w", err)
	}
	return telemetry.NewQueryMetrics(metricsStore), nil
}

// close tears the stack down in reverse dependency order.
func (a *app) close() error {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}

	var err error
	if a.backend != nil {
		err = a.backend.Close()
	}
	return err
}

// loadConfig loads layered configuration from dir (or the working
// directory when empty).
func loadConfig(dir string) (*config.Config, error) {
	if dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
