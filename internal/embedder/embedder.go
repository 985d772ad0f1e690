package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Common errors
var (
	ErrInitializationTimeout = errors.New("embedding model initialization timed out")
	ErrModel                 = errors.New("embedding model error")
	ErrEmptyText             = errors.New("text cannot be empty")
	ErrUnsupportedProvider   = errors.New("unsupported embedding provider")
	ErrDisposed              = errors.New("embedding provider disposed during initialization")
	ErrNoAPIKey              = errors.New("api key required")
)

// Provider names
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
)

// Defaults
const (
	DefaultModelName   = "Xenova/all-MiniLM-L6-v2"
	DefaultCacheDir    = "./models"
	DefaultInitTimeout = 120 * time.Second
	DefaultBatchSize   = 32
	DefaultCacheSize   = 10000

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Model is a loaded text-to-vector backend.
type Model interface {
	// Embed returns one vector per input text, in order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of every vector this model produces
	Dimension() int

	// Name identifies the model; it is recorded alongside stored embeddings
	Name() string

	// ConcurrentSafe reports whether Embed may be called from several goroutines at once
	ConcurrentSafe() bool

	// Close releases any resources held by the model
	Close() error
}

// Loader loads a Model. It is called at most once per successful
// initialization and must honour ctx cancellation where it can.
type Loader func(ctx context.Context, cfg Config) (Model, error)

// Config holds embedder configuration
type Config struct {
	Provider    string        // local or openai
	ModelName   string        // model identifier passed to the backend
	CacheDir    string        // local cache directory for model artifacts and vectors
	BaseURL     string        // OpenAI-compatible endpoint (openai provider)
	APIKey      string        // API key (openai provider)
	Dimensions  int           // requested output dimension, 0 for model default
	BatchSize   int           // texts per backend call in EmbedBatch
	InitTimeout time.Duration // bound on model initialization
	CacheSize   int           // in-memory LRU entries, 0 disables
	// PersistentCache stores vectors under CacheDir/vectors so rebuilds skip
	// texts that were embedded before.
	PersistentCache bool
	Retry           RetryConfig
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderLocal,
		ModelName:   DefaultModelName,
		CacheDir:    DefaultCacheDir,
		BatchSize:   DefaultBatchSize,
		InitTimeout: DefaultInitTimeout,
		CacheSize:   DefaultCacheSize,
		Retry:       DefaultRetryConfig(),
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.ModelName == "" {
		c.ModelName = def.ModelName
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = def.InitTimeout
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry = def.Retry
	}
}

// ComputeHash computes the cache key for text embedded by model
func ComputeHash(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
