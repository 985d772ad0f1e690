package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gamesearch-mcp/internal/embedder"
)

var envKeys = []string{
	"ENV", "LOG_LEVEL", "DATA_DIR", "SOURCE_DIR", "GAMESEARCH_DB_PATH",
	"EMBEDDING_MODEL_NAME", "EMBEDDING_MODEL_CACHE_DIR", "GAMESEARCH_EMBEDDING_PROVIDER",
	"GAMESEARCH_EMBEDDING_BASE_URL", "OPENAI_API_KEY", "GAMESEARCH_HTTP_ADDR",
	"GAMESEARCH_EMBEDDING_BATCH_SIZE", "GAMESEARCH_EMBEDDING_DIMENSIONS",
	"GAMESEARCH_INDEX_WORKERS", "GAMESEARCH_EMBEDDING_PERSISTENT_CACHE",
}

// clearEnv blanks every variable Load reads; empty values are ignored
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, filepath.Join("./data", "raw"), cfg.SourceDir)
	assert.Equal(t, filepath.Join("./data", "manifest.db"), cfg.DBPath)
	assert.Equal(t, "Xenova/all-MiniLM-L6-v2", cfg.Embedding.ModelName)
	assert.Equal(t, "./models", cfg.Embedding.CacheDir)
	assert.Equal(t, embedder.ProviderLocal, cfg.Embedding.Provider)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, 120, cfg.Embedding.InitTimeoutSec)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}

func TestLoadYAMLWithExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("GAMESEARCH_TEST_DATA", "/srv/game")

	path := writeFile(t, "config.yaml", `
log_level: debug
data_dir: ${GAMESEARCH_TEST_DATA}
source_dir: ${GAMESEARCH_TEST_UNSET:-/srv/raw}
embedding:
  batch_size: 8
  persistent_cache: true
http:
  addr: 127.0.0.1:9090
indexer:
  workers: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/game", cfg.DataDir)
	assert.Equal(t, "/srv/raw", cfg.SourceDir)
	assert.Equal(t, filepath.Join("/srv/game", "manifest.db"), cfg.DBPath)
	assert.Equal(t, 8, cfg.Embedding.BatchSize)
	assert.True(t, cfg.Embedding.PersistentCache)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.Equal(t, 3, cfg.Indexer.Workers)
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.toml", `
env = "prod"
data_dir = "/var/lib/gamesearch"

[embedding]
provider = "openai"
base_url = "http://localhost:8000/v1"
model_name = "all-MiniLM-L6-v2"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "/var/lib/gamesearch", cfg.DataDir)
	assert.Equal(t, embedder.ProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:8000/v1", cfg.Embedding.BaseURL)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("GAMESEARCH_INDEX_WORKERS", "7")
	t.Setenv("GAMESEARCH_EMBEDDING_PERSISTENT_CACHE", "true")

	path := writeFile(t, "config.yml", "log_level: debug\ndata_dir: /from/file\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 7, cfg.Indexer.Workers)
	assert.True(t, cfg.Embedding.PersistentCache)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		file  string
		body  string
		match string
	}{
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}, match: "log_level"},
		{name: "bad env", env: map[string]string{"ENV": "staging"}, match: "env must be"},
		{name: "bad provider", env: map[string]string{"GAMESEARCH_EMBEDDING_PROVIDER": "cohere"}, match: "embedding.provider"},
		{name: "openai without credentials", env: map[string]string{"GAMESEARCH_EMBEDDING_PROVIDER": "openai"}, match: "OPENAI_API_KEY"},
		{name: "non-numeric workers", env: map[string]string{"GAMESEARCH_INDEX_WORKERS": "many"}, match: "integer"},
		{name: "non-boolean cache flag", env: map[string]string{"GAMESEARCH_EMBEDDING_PERSISTENT_CACHE": "sometimes"}, match: "boolean"},
		{name: "negative workers", file: "c.yaml", body: "indexer:\n  workers: -1\n", match: "workers"},
		{name: "unsupported format", file: "c.json", body: "{}", match: "unsupported config format"},
		{name: "invalid yaml", file: "c.yaml", body: "log_level: [", match: "YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file, tt.body)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.match)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "GAMESEARCH_DOTENV_TEST"
	const kept = "GAMESEARCH_DOTENV_KEPT"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	t.Setenv(kept, "original")

	path := writeFile(t, ".env", key+"=from-file\n"+kept+"=overridden\n")
	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv(key))
	assert.Equal(t, "original", os.Getenv(kept), "existing variables win")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")), "missing file is fine")
}

func TestEmbedderConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GAMESEARCH_EMBEDDING_PROVIDER", "OpenAI")
	t.Setenv("GAMESEARCH_EMBEDDING_DIMENSIONS", "256")

	cfg, err := Load("")
	require.NoError(t, err)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderOpenAI, ec.Provider)
	assert.Equal(t, "sk-test", ec.APIKey)
	assert.Equal(t, 256, ec.Dimensions)
	assert.Equal(t, 120*time.Second, ec.InitTimeout)
	assert.Equal(t, 10000, ec.CacheSize)
	assert.Equal(t, embedder.DefaultRetryConfig().MaxRetries, ec.Retry.MaxRetries)
}
