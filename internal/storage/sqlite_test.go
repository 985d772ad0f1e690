package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleCollection(name string) *Collection {
	return &Collection{
		Name:            name,
		EntityCount:     3,
		Dimension:       384,
		Model:           "local-hashing",
		ContentHash:     "abc123",
		SourcePath:      "data/raw/" + name + ".json",
		EmbeddingsBytes: 12 + 3*384*4,
	}
}

func TestUpsertAndGetCollection(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	c := sampleCollection("items")
	require.NoError(t, store.UpsertCollection(ctx, c))
	assert.NotZero(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.False(t, c.IndexedAt.IsZero())

	got, err := store.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "items", got.Name)
	assert.Equal(t, 3, got.EntityCount)
	assert.Equal(t, 384, got.Dimension)
	assert.Equal(t, "local-hashing", got.Model)
	assert.Equal(t, "abc123", got.ContentHash)
	assert.Equal(t, "data/raw/items.json", got.SourcePath)
	assert.Equal(t, c.EmbeddingsBytes, got.EmbeddingsBytes)
	assert.True(t, c.IndexedAt.Equal(got.IndexedAt))
}

func TestUpsertCollectionUpdatesInPlace(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	first := sampleCollection("quests")
	require.NoError(t, store.UpsertCollection(ctx, first))

	time.Sleep(2 * time.Millisecond)
	second := sampleCollection("quests")
	second.EntityCount = 10
	second.ContentHash = "def456"
	require.NoError(t, store.UpsertCollection(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "created_at survives updates")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := store.GetCollection(ctx, "quests")
	require.NoError(t, err)
	assert.Equal(t, 10, got.EntityCount)
	assert.Equal(t, "def456", got.ContentHash)

	all, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertCollectionValidation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.ErrorIs(t, store.UpsertCollection(ctx, nil), ErrInvalidCollection)
	require.ErrorIs(t, store.UpsertCollection(ctx, &Collection{}), ErrInvalidCollection)

	bad := sampleCollection("arcs")
	bad.EntityCount = -1
	require.ErrorIs(t, store.UpsertCollection(ctx, bad), ErrInvalidCollection)
}

func TestGetCollectionNotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetCollection(context.Background(), "traders")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListCollectionsSortedByName(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"traders", "arcs", "items"} {
		require.NoError(t, store.UpsertCollection(ctx, sampleCollection(name)))
	}

	all, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "arcs", all[0].Name)
	assert.Equal(t, "items", all[1].Name)
	assert.Equal(t, "traders", all[2].Name)
}

func TestListCollectionsEmpty(t *testing.T) {
	store := setupTestDB(t)
	all, err := store.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteCollection(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCollection(ctx, sampleCollection("items")))
	require.NoError(t, store.DeleteCollection(ctx, "items"))

	_, err := store.GetCollection(ctx, "items")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.DeleteCollection(ctx, "items"), ErrNotFound)
}

func TestRecordAndLatestRun(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.LatestRun(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	start := time.Now().Add(-time.Second)
	require.NoError(t, store.RecordRun(ctx, &IndexRun{StartedAt: start, Indexed: 2, Skipped: 1, Model: "m"}))
	require.NoError(t, store.RecordRun(ctx, &IndexRun{StartedAt: start, Indexed: 0, Skipped: 3, Model: "m"}))

	run, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Indexed)
	assert.Equal(t, 3, run.Skipped)
	assert.Equal(t, "m", run.Model)
	assert.True(t, run.Duration() > 0)
}

func TestTransactionCommitAndRollback(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertCollection(ctx, sampleCollection("items")))
	require.NoError(t, tx.Rollback())

	_, err = store.GetCollection(ctx, "items")
	require.ErrorIs(t, err, ErrNotFound)

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertCollection(ctx, sampleCollection("items")))
	require.NoError(t, tx.RecordRun(ctx, &IndexRun{Indexed: 1}))
	_, err = tx.BeginTx(ctx)
	require.Error(t, err)
	require.NoError(t, tx.Commit())

	got, err := store.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, "items", got.Name)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertCollection(ctx, sampleCollection("events")))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetCollection(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 3, got.EntityCount)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
