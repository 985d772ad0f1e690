package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/gamesearch-mcp/internal/embedder"
)

// Config holds the gamesearch configuration.
type Config struct {
	Env       string          `yaml:"env" toml:"env"`             // local, dev, docker, prod
	LogLevel  string          `yaml:"log_level" toml:"log_level"` // debug, info, warn, error
	DataDir   string          `yaml:"data_dir" toml:"data_dir"`
	SourceDir string          `yaml:"source_dir" toml:"source_dir"`
	DBPath    string          `yaml:"db_path" toml:"db_path"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Indexer   IndexerConfig   `yaml:"indexer" toml:"indexer"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider" toml:"provider"` // local, openai
	ModelName       string `yaml:"model_name" toml:"model_name"`
	CacheDir        string `yaml:"cache_dir" toml:"cache_dir"`
	BaseURL         string `yaml:"base_url" toml:"base_url"`
	APIKey          string `yaml:"api_key" toml:"api_key"`
	Dimensions      int    `yaml:"dimensions" toml:"dimensions"`
	BatchSize       int    `yaml:"batch_size" toml:"batch_size"`
	InitTimeoutSec  int    `yaml:"init_timeout_sec" toml:"init_timeout_sec"`
	CacheSize       int    `yaml:"cache_size" toml:"cache_size"`
	PersistentCache bool   `yaml:"persistent_cache" toml:"persistent_cache"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr            string `yaml:"addr" toml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec" toml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec" toml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec" toml:"shutdown_timeout_sec"`
}

// IndexerConfig holds cache build settings.
type IndexerConfig struct {
	Workers int `yaml:"workers" toml:"workers"` // 0 = runtime.NumCPU()
}

// Defaults
const (
	DefaultEnv        = "local"
	DefaultLogLevel   = "info"
	DefaultDataDir    = "./data"
	DefaultHTTPAddr   = ":8080"
	dbFileName        = "manifest.db"
	sourceSubdir      = "raw"
	defaultTimeoutSec = 10
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validEnvs      = []string{"local", "dev", "docker", "prod"}
	validProviders = []string{embedder.ProviderLocal, embedder.ProviderOpenAI}
)

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration: the optional file at path (YAML or TOML by
// extension, ${VAR} and ${VAR:-default} expanded), then environment
// overrides, then defaults, then validation.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		var err error
		cfg, err = readFile(path)
		if err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	data = expandEnvVars(data)

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables that are set and non-empty
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str("ENV", &c.Env)
	str("LOG_LEVEL", &c.LogLevel)
	str("DATA_DIR", &c.DataDir)
	str("SOURCE_DIR", &c.SourceDir)
	str("GAMESEARCH_DB_PATH", &c.DBPath)
	str("EMBEDDING_MODEL_NAME", &c.Embedding.ModelName)
	str("EMBEDDING_MODEL_CACHE_DIR", &c.Embedding.CacheDir)
	str("GAMESEARCH_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("GAMESEARCH_EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	str("OPENAI_API_KEY", &c.Embedding.APIKey)
	str("GAMESEARCH_HTTP_ADDR", &c.HTTP.Addr)

	for key, dst := range map[string]*int{
		"GAMESEARCH_EMBEDDING_BATCH_SIZE": &c.Embedding.BatchSize,
		"GAMESEARCH_EMBEDDING_DIMENSIONS": &c.Embedding.Dimensions,
		"GAMESEARCH_INDEX_WORKERS":        &c.Indexer.Workers,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("GAMESEARCH_EMBEDDING_PERSISTENT_CACHE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GAMESEARCH_EMBEDDING_PERSISTENT_CACHE must be a boolean, got %q", v)
		}
		c.Embedding.PersistentCache = b
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = DefaultEnv
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.SourceDir == "" {
		c.SourceDir = filepath.Join(c.DataDir, sourceSubdir)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, dbFileName)
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = embedder.ProviderLocal
	}
	c.Embedding.Provider = strings.ToLower(c.Embedding.Provider)
	if c.Embedding.ModelName == "" {
		c.Embedding.ModelName = embedder.DefaultModelName
	}
	if c.Embedding.CacheDir == "" {
		c.Embedding.CacheDir = embedder.DefaultCacheDir
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = embedder.DefaultBatchSize
	}
	if c.Embedding.InitTimeoutSec <= 0 {
		c.Embedding.InitTimeoutSec = int(embedder.DefaultInitTimeout / time.Second)
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = embedder.DefaultCacheSize
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = defaultTimeoutSec
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = defaultTimeoutSec
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = defaultTimeoutSec
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %s, got %q", strings.Join(validLogLevels, ", "), c.LogLevel)
	}
	if !slices.Contains(validEnvs, c.Env) {
		return fmt.Errorf("env must be one of %s, got %q", strings.Join(validEnvs, ", "), c.Env)
	}
	if !slices.Contains(validProviders, c.Embedding.Provider) {
		return fmt.Errorf("embedding.provider must be one of %s, got %q",
			strings.Join(validProviders, ", "), c.Embedding.Provider)
	}
	if c.Embedding.Provider == embedder.ProviderOpenAI && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding provider openai requires OPENAI_API_KEY or a base_url")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Indexer.Workers < 0 {
		return fmt.Errorf("indexer.workers must not be negative, got %d", c.Indexer.Workers)
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	cfg := embedder.DefaultConfig()
	cfg.Provider = c.Embedding.Provider
	cfg.ModelName = c.Embedding.ModelName
	cfg.CacheDir = c.Embedding.CacheDir
	cfg.BaseURL = c.Embedding.BaseURL
	cfg.APIKey = c.Embedding.APIKey
	cfg.Dimensions = c.Embedding.Dimensions
	cfg.BatchSize = c.Embedding.BatchSize
	cfg.InitTimeout = time.Duration(c.Embedding.InitTimeoutSec) * time.Second
	cfg.CacheSize = c.Embedding.CacheSize
	cfg.PersistentCache = c.Embedding.PersistentCache
	return cfg
}

// ShutdownTimeout is how long the HTTP server gets to drain
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.HTTP.ShutdownSec) * time.Second
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
