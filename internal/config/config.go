// Package config provides configuration management for partfuse.
// Configuration is loaded with the following precedence (later wins):
//  1. Built-in defaults
//  2. User config (~/.config/partfuse/config.yaml)
//  3. Project config (partfuse.yaml in the working directory)
//  4. Environment variable overrides (PARTFUSE_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project-level config file name.
const ConfigFileName = "partfuse.yaml"

// Config is the root configuration for partfuse.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Embedding  EmbeddingConfig  `yaml:"embedding" json:"embedding"`
	Encoder    EncoderConfig    `yaml:"encoder" json:"encoder"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Breaker    BreakerConfig    `yaml:"breaker" json:"breaker"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// SearchConfig controls strategy selection and fusion.
type SearchConfig struct {
	// FusionMode is "rrf" (rank-based, default) or "weighted" (min-max
	// normalized score combination).
	FusionMode string `yaml:"fusion_mode" json:"fusion_mode"`

	// RRFConstant is the k in 1/(k+rank). Default: 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// Weights are per-strategy fusion weights (dense, sparse, neural_sparse).
	Weights map[string]float64 `yaml:"weights" json:"weights"`

	// Strategies are the enabled strategies. Default: all three.
	Strategies []string `yaml:"strategies" json:"strategies"`

	// DefaultLimit is the result count when the request gives none.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the requested result count.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// WidenFactor multiplies the requested limit for per-strategy retrieval
	// so fusion sees enough candidates. Default: 3.
	WidenFactor int `yaml:"widen_factor" json:"widen_factor"`

	// StrategyTimeout bounds each retrieval call (e.g. "2s").
	StrategyTimeout string `yaml:"strategy_timeout" json:"strategy_timeout"`

	// RequestTimeout bounds the whole search request (e.g. "5s").
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`

	// MinDenseScore drops dense hits below this similarity. Default: 0.4.
	MinDenseScore float64 `yaml:"min_dense_score" json:"min_dense_score"`
}

// ClassifierConfig controls part-number classification.
type ClassifierConfig struct {
	// Threshold is the confidence above which a query is routed to the
	// keyword-biased strategies. Default: 0.6.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// CacheSize is the classification memo LRU capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// CacheConfig controls the fused-result cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Capacity is the maximum number of cached fused results.
	Capacity int `yaml:"capacity" json:"capacity"`

	// TTL expires entries after this duration (e.g. "300s").
	// Empty or "0" disables time-based expiry; the cache is then only
	// invalidated by LRU eviction and snapshot reloads.
	TTL string `yaml:"ttl" json:"ttl"`
}

// EmbeddingConfig controls the dense query embedder.
type EmbeddingConfig struct {
	// Provider is "ollama" or "static" (deterministic hash embeddings,
	// no network required).
	Provider string `yaml:"provider" json:"provider"`

	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize is the embedding LRU capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// EncoderConfig controls the neural-sparse term-weight encoder.
type EncoderConfig struct {
	// Provider is "static" (corpus-free heuristic weights) or "http"
	// (an external learned sparse encoder service).
	Provider string `yaml:"provider" json:"provider"`

	// Endpoint is the encoder service URL when provider is "http".
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// MaxTerms caps the number of weighted terms per query.
	MaxTerms int `yaml:"max_terms" json:"max_terms"`
}

// StoreConfig locates the index snapshot and product catalog.
type StoreConfig struct {
	// Dir is the snapshot directory holding the sparse index, the vector
	// index, and the catalog database.
	Dir string `yaml:"dir" json:"dir"`

	// Watch reloads the snapshot when it changes on disk and flushes the
	// result cache.
	Watch bool `yaml:"watch" json:"watch"`
}

// BreakerConfig controls the per-strategy circuit breakers.
type BreakerConfig struct {
	MaxFailures  int    `yaml:"max_failures" json:"max_failures"`
	ResetTimeout string `yaml:"reset_timeout" json:"reset_timeout"`
}

// ServerConfig controls the HTTP serving boundary.
type ServerConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RateLimit is requests per second per process; RateBurst is the
	// token bucket burst. 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" json:"rate_burst"`

	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool `yaml:"metrics" json:"metrics"`
}

// Strategy weight map keys.
const (
	WeightDense        = "dense"
	WeightSparse       = "sparse"
	WeightNeuralSparse = "neural_sparse"
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			FusionMode:  "rrf",
			RRFConstant: 60,
			Weights: map[string]float64{
				WeightDense:        1.0,
				WeightSparse:       1.0,
				WeightNeuralSparse: 1.0,
			},
			Strategies:      []string{WeightDense, WeightSparse, WeightNeuralSparse},
			DefaultLimit:    10,
			MaxLimit:        100,
			WidenFactor:     3,
			StrategyTimeout: "2s",
			RequestTimeout:  "5s",
			MinDenseScore:   0.4,
		},
		Classifier: ClassifierConfig{
			Threshold: 0.6,
			CacheSize: 512,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      "",
		},
		Embedding: EmbeddingConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			Dimensions: 384,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Encoder: EncoderConfig{
			Provider: "static",
			MaxTerms: 32,
		},
		Store: StoreConfig{
			Dir:   ".partfuse",
			Watch: false,
		},
		Breaker: BreakerConfig{
			MaxFailures:  5,
			ResetTimeout: "30s",
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8940,
			LogLevel:  "info",
			RateLimit: 0,
			RateBurst: 20,
			Metrics:   true,
		},
	}
}

// GetUserConfigDir returns the user-level config directory.
func GetUserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "partfuse")
}

// GetUserConfigPath returns the user-level config file path.
func GetUserConfigPath() string {
	dir := GetUserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// UserConfigExists reports whether a user-level config file is present.
func UserConfigExists() bool {
	path := GetUserConfigPath()
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Load builds the effective configuration for the given directory.
// Missing files are not errors; invalid YAML or invalid values are.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		user, err := loadYAMLFile(GetUserConfigPath())
		if err != nil {
			return nil, err
		}
		cfg.mergeWith(user)
	}

	projectPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		project, err := loadYAMLFile(projectPath)
		if err != nil {
			return nil, err
		}
		cfg.mergeWith(project)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAMLFile parses a single YAML config file.
func loadYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other == nil {
		return
	}

	if other.Version != 0 {
		c.Version = other.Version
	}

	// Search
	if other.Search.FusionMode != "" {
		c.Search.FusionMode = other.Search.FusionMode
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if len(other.Search.Weights) > 0 {
		for k, v := range other.Search.Weights {
			c.Search.Weights[k] = v
		}
	}
	if len(other.Search.Strategies) > 0 {
		c.Search.Strategies = other.Search.Strategies
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.WidenFactor != 0 {
		c.Search.WidenFactor = other.Search.WidenFactor
	}
	if other.Search.StrategyTimeout != "" {
		c.Search.StrategyTimeout = other.Search.StrategyTimeout
	}
	if other.Search.RequestTimeout != "" {
		c.Search.RequestTimeout = other.Search.RequestTimeout
	}
	if other.Search.MinDenseScore != 0 {
		c.Search.MinDenseScore = other.Search.MinDenseScore
	}

	// Classifier
	if other.Classifier.Threshold != 0 {
		c.Classifier.Threshold = other.Classifier.Threshold
	}
	if other.Classifier.CacheSize != 0 {
		c.Classifier.CacheSize = other.Classifier.CacheSize
	}

	// Cache
	if other.Cache.Capacity != 0 {
		c.Cache.Capacity = other.Cache.Capacity
	}
	if other.Cache.TTL != "" {
		c.Cache.TTL = other.Cache.TTL
	}

	// Embedding
	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	if other.Embedding.CacheSize != 0 {
		c.Embedding.CacheSize = other.Embedding.CacheSize
	}

	// Encoder
	if other.Encoder.Provider != "" {
		c.Encoder.Provider = other.Encoder.Provider
	}
	if other.Encoder.Endpoint != "" {
		c.Encoder.Endpoint = other.Encoder.Endpoint
	}
	if other.Encoder.MaxTerms != 0 {
		c.Encoder.MaxTerms = other.Encoder.MaxTerms
	}

	// Store
	if other.Store.Dir != "" {
		c.Store.Dir = other.Store.Dir
	}
	if other.Store.Watch {
		c.Store.Watch = true
	}

	// Breaker
	if other.Breaker.MaxFailures != 0 {
		c.Breaker.MaxFailures = other.Breaker.MaxFailures
	}
	if other.Breaker.ResetTimeout != "" {
		c.Breaker.ResetTimeout = other.Breaker.ResetTimeout
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.RateLimit != 0 {
		c.Server.RateLimit = other.Server.RateLimit
	}
	if other.Server.RateBurst != 0 {
		c.Server.RateBurst = other.Server.RateBurst
	}
}

// applyEnvOverrides applies PARTFUSE_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARTFUSE_FUSION_MODE"); v != "" {
		c.Search.FusionMode = v
	}
	if v := os.Getenv("PARTFUSE_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("PARTFUSE_STRATEGY_TIMEOUT"); v != "" {
		c.Search.StrategyTimeout = v
	}
	if v := os.Getenv("PARTFUSE_REQUEST_TIMEOUT"); v != "" {
		c.Search.RequestTimeout = v
	}
	if v := os.Getenv("PARTFUSE_CLASSIFIER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Classifier.Threshold = f
		}
	}
	if v := os.Getenv("PARTFUSE_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Capacity = n
		}
	}
	if v := os.Getenv("PARTFUSE_CACHE_TTL"); v != "" {
		c.Cache.TTL = v
	}
	if v := os.Getenv("PARTFUSE_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("PARTFUSE_EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("PARTFUSE_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
	if v := os.Getenv("PARTFUSE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PARTFUSE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("PARTFUSE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	switch c.Search.FusionMode {
	case "rrf", "weighted":
	default:
		return fmt.Errorf("search.fusion_mode must be rrf or weighted, got %q", c.Search.FusionMode)
	}

	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}

	for name, w := range c.Search.Weights {
		switch name {
		case WeightDense, WeightSparse, WeightNeuralSparse:
		default:
			return fmt.Errorf("search.weights: unknown strategy %q", name)
		}
		if w < 0 {
			return fmt.Errorf("search.weights.%s must be non-negative, got %f", name, w)
		}
	}

	for _, s := range c.Search.Strategies {
		switch s {
		case WeightDense, WeightSparse, WeightNeuralSparse:
		default:
			return fmt.Errorf("search.strategies: unknown strategy %q", s)
		}
	}
	if len(c.Search.Strategies) == 0 {
		return fmt.Errorf("search.strategies must not be empty")
	}

	if c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search.max_limit must be positive, got %d", c.Search.MaxLimit)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit must be in [1, max_limit], got %d", c.Search.DefaultLimit)
	}
	if c.Search.WidenFactor < 1 {
		return fmt.Errorf("search.widen_factor must be at least 1, got %d", c.Search.WidenFactor)
	}

	if _, err := c.StrategyTimeout(); err != nil {
		return fmt.Errorf("search.strategy_timeout: %w", err)
	}
	if _, err := c.RequestTimeout(); err != nil {
		return fmt.Errorf("search.request_timeout: %w", err)
	}

	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier.threshold must be in [0, 1], got %f", c.Classifier.Threshold)
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if _, err := c.CacheTTL(); err != nil {
		return fmt.Errorf("cache.ttl: %w", err)
	}

	switch c.Embedding.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embedding.provider must be ollama or static, got %q", c.Embedding.Provider)
	}

	switch c.Encoder.Provider {
	case "static", "http":
	default:
		return fmt.Errorf("encoder.provider must be static or http, got %q", c.Encoder.Provider)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [0, 65535], got %d", c.Server.Port)
	}

	return nil
}

// StrategyTimeout parses the per-strategy timeout.
func (c *Config) StrategyTimeout() (time.Duration, error) {
	return parseDuration(c.Search.StrategyTimeout, 2*time.Second)
}

// RequestTimeout parses the whole-request timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	return parseDuration(c.Search.RequestTimeout, 5*time.Second)
}

// CacheTTL parses the cache TTL. Zero means no time-based expiry.
func (c *Config) CacheTTL() (time.Duration, error) {
	return parseDuration(c.Cache.TTL, 0)
}

// BreakerResetTimeout parses the circuit breaker reset timeout.
func (c *Config) BreakerResetTimeout() (time.Duration, error) {
	return parseDuration(c.Breaker.ResetTimeout, 30*time.Second)
}

// parseDuration parses a duration string, treating "" and "0" as the default.
func parseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}

// Save writes the config as YAML to the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
