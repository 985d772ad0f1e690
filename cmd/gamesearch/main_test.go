package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gamesearch-mcp/internal/storage"
)

const itemsSource = `[
	{"id": "glow-stick", "name": "Blue Light Stick", "description": "A chemical light that glows blue", "item_type": "Quick Use", "rarity": "Common"},
	{"id": "medkit", "name": "Medkit", "description": "Restores a large amount of health", "item_type": "Medical", "rarity": "Rare"},
	{"id": "rusted-gear", "name": "Rusted Gear", "description": "Salvaged machine part", "item_type": "Material"}
]`

type cliFixture struct {
	root       string
	configPath string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "DATA_DIR", "SOURCE_DIR", "GAMESEARCH_DB_PATH",
		"EMBEDDING_MODEL_NAME", "EMBEDDING_MODEL_CACHE_DIR", "GAMESEARCH_EMBEDDING_PROVIDER",
		"GAMESEARCH_EMBEDDING_BASE_URL", "GAMESEARCH_EMBEDDING_PERSISTENT_CACHE", "GAMESEARCH_CONFIG",
	} {
		t.Setenv(key, "")
	}

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "raw"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "raw", "items.json"), []byte(itemsSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "raw", "events.json"), []byte(`[{"id": "storm"}]`), 0o644))

	configPath := filepath.Join(root, "gamesearch.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
env: local
log_level: error
data_dir: `+filepath.Join(root, "data")+`
source_dir: `+filepath.Join(root, "raw")+`
embedding:
  provider: local
  model_name: local-hashing
  cache_dir: `+filepath.Join(root, "models")+`
`), 0o644))

	return &cliFixture{root: root, configPath: configPath}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard

	argv := append([]string{"gamesearch",
		"--config", f.configPath,
		"--env-file", filepath.Join(f.root, "missing.env"),
	}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestCacheThenSearch(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "cache", "--collections", "items,events", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "2 indexed, 0 skipped, 0 failed")

	out, err = f.run(t, "search", "--limit", "2", "--fields", "name", "items", "medkt")
	require.NoError(t, err)

	var results []struct {
		Score  float64        `json:"score"`
		Entity map[string]any `json:"entity"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, map[string]any{"name": "Medkit"}, results[0].Entity)
	assert.LessOrEqual(t, len(results), 2)

	out, err = f.run(t, "cache", "--collections", "items")
	require.NoError(t, err)
	assert.Contains(t, out, "0 indexed, 1 skipped, 0 failed")
}

func TestCacheReportsFailures(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "cache", "--collections", "items", "--collections", "arcs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 collection(s) failed")
	assert.Contains(t, out, "1 indexed, 0 skipped, 1 failed")
}

func TestCacheUnknownCollection(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "cache", "--collections", "weapons")
	require.Error(t, err)
}

func TestSearchNotCached(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "search", "items", "medkit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gamesearch cache")
}

func TestSearchUsage(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "search", "items")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	_, err = f.run(t, "search", "--limit", "0", "items", "medkit")
	require.Error(t, err)

	_, err = f.run(t, "search", "--fields", "__proto__", "items", "medkit")
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "no cache build recorded")
	assert.Contains(t, out, "not cached")

	_, err = f.run(t, "cache", "--collections", "items")
	require.NoError(t, err)

	out, err = f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "local-hashing")
	assert.Contains(t, out, "1 indexed, 0 skipped, 0 failed")
	assert.Contains(t, out, "schema "+storage.CurrentSchemaVersion)
}

func TestInvalidLogLevelFlag(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "--log-level", "loud", "status")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gamesearch "+version)
	assert.Contains(t, out, storage.BuildMode)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"items", "arcs", "quests"}, splitList([]string{"items, arcs", "", "quests"}))
	assert.Nil(t, splitList(nil))
}
