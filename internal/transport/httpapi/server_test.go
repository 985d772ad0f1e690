package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/embedder"
	"github.com/dshills/gamesearch-mcp/internal/embedstore"
	"github.com/dshills/gamesearch-mcp/internal/metrics"
	"github.com/dshills/gamesearch-mcp/internal/storage"
)

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}
func (stubEmbedder) Initialize(context.Context) error { return nil }

type fixture struct {
	dir    string
	store  *storage.SQLiteStorage
	router http.Handler
}

func writeCollection(t *testing.T, dataDir, name string, entities []map[string]any, vectors [][]float32) {
	t.Helper()
	paths := catalog.PathsFor(dataDir, name)
	require.NoError(t, os.MkdirAll(paths.Dir, 0o755))
	data, err := json.Marshal(entities)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(paths.Data, data, 0o644))
	if vectors != nil {
		require.NoError(t, embedstore.Save(paths.Embeddings, vectors, 2))
	}
}

func setup(t *testing.T, emb catalog.Embedder) *fixture {
	t.Helper()
	dir := t.TempDir()

	writeCollection(t, dir, catalog.Items, []map[string]any{
		{"id": "glow-stick", "name": "Blue Light Stick", "rarity": "Common"},
		{"id": "medkit", "name": "Medkit", "rarity": "Rare"},
	}, [][]float32{{1, 0}, {0, 1}})
	writeCollection(t, dir, catalog.Events, []map[string]any{
		{"id": "storm", "name": "Electromagnetic Storm"},
	}, nil)

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.Collectors()...)

	srv := NewServer(catalog.New(dir, emb, nil), store, nil, WithGatherer(reg))
	return &fixture{dir: dir, store: store, router: srv.Router()}
}

func (f *fixture) get(t *testing.T, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	f := setup(t, stubEmbedder{})

	rec, body := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSearch(t *testing.T) {
	f := setup(t, stubEmbedder{})

	rec, body := f.get(t, "/collections/items/search?q=blue+light&limit=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "items", body["collection"])
	assert.Equal(t, "blue light", body["query"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "glow-stick", hit["entity"].(map[string]any)["id"])
	assert.Greater(t, hit["score"].(float64), 0.0)
}

func TestSearchFieldProjection(t *testing.T) {
	f := setup(t, stubEmbedder{})

	rec, body := f.get(t, "/collections/items/search?q=blue+light&limit=1&fields=name,%20rarity")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entity := body["results"].([]any)[0].(map[string]any)["entity"].(map[string]any)
	assert.Equal(t, map[string]any{"name": "Blue Light Stick", "rarity": "Common"}, entity)
}

func TestSearchErrors(t *testing.T) {
	f := setup(t, stubEmbedder{})

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing query", "/collections/items/search", http.StatusBadRequest, CodeEmptyQuery},
		{"blank query", "/collections/items/search?q=%20%20", http.StatusBadRequest, CodeEmptyQuery},
		{"limit not a number", "/collections/items/search?q=x&limit=abc", http.StatusBadRequest, CodeBadRequest},
		{"limit too small", "/collections/items/search?q=x&limit=0", http.StatusBadRequest, CodeBadRequest},
		{"limit too large", "/collections/items/search?q=x&limit=51", http.StatusBadRequest, CodeBadRequest},
		{"bad field", "/collections/items/search?q=x&fields=__proto__", http.StatusBadRequest, CodeBadRequest},
		{"unknown collection", "/collections/weapons/search?q=x", http.StatusNotFound, CodeNotFound},
		{"plain collection", "/collections/events/search?q=x", http.StatusNotFound, CodeNotFound},
		{"not cached", "/collections/quests/search?q=x", http.StatusNotFound, CodeNotCached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.get(t, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestSearchCorruptedCache(t *testing.T) {
	f := setup(t, stubEmbedder{})
	paths := catalog.PathsFor(f.dir, catalog.Items)
	require.NoError(t, os.WriteFile(paths.Embeddings, []byte("garbage"), 0o644))

	rec, body := f.get(t, "/collections/items/search?q=medkit")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeCorruptedCache, body["code"])
}

func TestSearchModelUnavailable(t *testing.T) {
	f := setup(t, stubEmbedder{err: embedder.ErrInitializationTimeout})

	rec, body := f.get(t, "/collections/items/search?q=medkit")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeModelNotReady, body["code"])
}

func TestEvents(t *testing.T) {
	f := setup(t, stubEmbedder{})

	rec, body := f.get(t, "/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestListCollections(t *testing.T) {
	f := setup(t, stubEmbedder{})
	ctx := context.Background()

	err := f.store.UpsertCollection(ctx, &storage.Collection{
		Name:        catalog.Items,
		EntityCount: 2,
		Dimension:   2,
		Model:       "test-model",
		ContentHash: "abc",
		IndexedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	_, _ = f.get(t, "/collections/items/search?q=medkit")

	rec, body := f.get(t, "/collections")
	require.Equal(t, http.StatusOK, rec.Code)

	byName := map[string]map[string]any{}
	for _, c := range body["collections"].([]any) {
		entry := c.(map[string]any)
		byName[entry["name"].(string)] = entry
	}
	require.Len(t, byName, len(catalog.Definitions()))

	items := byName[catalog.Items]
	assert.Equal(t, true, items["cached"])
	assert.Equal(t, true, items["loaded"])
	assert.Equal(t, float64(2), items["entities"])
	assert.Equal(t, "test-model", items["model"])

	quests := byName[catalog.Quests]
	assert.Equal(t, false, quests["cached"])
	assert.NotContains(t, quests, "model")
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t, stubEmbedder{})
	_, _ = f.get(t, "/collections/items/search?q=medkit")

	rec, _ := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gamesearch_http_requests_total")
	assert.Contains(t, rec.Body.String(), `path="/collections/{name}/search"`)
}

func TestUnknownRoute(t *testing.T) {
	f := setup(t, stubEmbedder{})

	rec, body := f.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, body["code"])
}
