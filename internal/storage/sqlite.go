package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidCollection is returned when a collection row fails validation
	ErrInvalidCollection = errors.New("invalid collection")
)

// timeLayout is how timestamps are stored; TEXT keeps both drivers in agreement
const timeLayout = time.RFC3339Nano

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection also keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the manifest database at dbPath and
// brings its schema up to date.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied schema version
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (string, error) {
	return SchemaVersion(ctx, s.db)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Collection operations

func (s *SQLiteStorage) UpsertCollection(ctx context.Context, c *Collection) error {
	return upsertCollection(ctx, s.db, c)
}

func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return getCollection(ctx, s.db, name)
}

func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*Collection, error) {
	return listCollections(ctx, s.db)
}

func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	return deleteCollection(ctx, s.db, name)
}

// Run history

func (s *SQLiteStorage) RecordRun(ctx context.Context, run *IndexRun) error {
	return recordRun(ctx, s.db, run)
}

func (s *SQLiteStorage) LatestRun(ctx context.Context) (*IndexRun, error) {
	return latestRun(ctx, s.db)
}

func validateCollection(c *Collection) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", ErrInvalidCollection)
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidCollection)
	case c.EntityCount < 0:
		return fmt.Errorf("%w: negative entity count %d", ErrInvalidCollection, c.EntityCount)
	case c.Dimension < 0:
		return fmt.Errorf("%w: negative dimension %d", ErrInvalidCollection, c.Dimension)
	}
	return nil
}

// upsertCollection inserts or replaces the row for c.Name. created_at is
// preserved across updates.
func upsertCollection(ctx context.Context, q querier, c *Collection) error {
	if err := validateCollection(c); err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.IndexedAt.IsZero() {
		c.IndexedAt = now
	}

	query := `
		INSERT INTO collections (name, entity_count, dimension, model, content_hash,
			source_path, embeddings_bytes, indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			entity_count = excluded.entity_count,
			dimension = excluded.dimension,
			model = excluded.model,
			content_hash = excluded.content_hash,
			source_path = excluded.source_path,
			embeddings_bytes = excluded.embeddings_bytes,
			indexed_at = excluded.indexed_at,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		c.Name, c.EntityCount, c.Dimension, c.Model, c.ContentHash,
		c.SourcePath, c.EmbeddingsBytes, c.IndexedAt.UTC().Format(timeLayout),
		now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert collection %s: %w", c.Name, err)
	}

	// LastInsertId is unreliable for the update branch, read the row back
	stored, err := getCollection(ctx, q, c.Name)
	if err != nil {
		return err
	}
	c.ID = stored.ID
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

const collectionColumns = `id, name, entity_count, dimension, model, content_hash,
	source_path, embeddings_bytes, indexed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var c Collection
	var indexedAt, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.EntityCount, &c.Dimension, &c.Model, &c.ContentHash,
		&c.SourcePath, &c.EmbeddingsBytes, &indexedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if c.IndexedAt, err = parseTime(indexedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func getCollection(ctx context.Context, q querier, name string) (*Collection, error) {
	row := q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE name = ?`, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return c, nil
}

func listCollections(ctx context.Context, q querier) ([]*Collection, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func deleteCollection(ctx context.Context, q querier, name string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	return nil
}

func recordRun(ctx context.Context, q querier, run *IndexRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO index_runs (started_at, finished_at, indexed, skipped, failed, model)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Indexed, run.Skipped, run.Failed, run.Model)
	if err != nil {
		return fmt.Errorf("failed to record index run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func latestRun(ctx context.Context, q querier) (*IndexRun, error) {
	var run IndexRun
	var startedAt, finishedAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, indexed, skipped, failed, model
		FROM index_runs ORDER BY id DESC LIMIT 1`).
		Scan(&run.ID, &startedAt, &finishedAt, &run.Indexed, &run.Skipped, &run.Failed, &run.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest index run: %w", err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	return &run, nil
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) UpsertCollection(ctx context.Context, c *Collection) error {
	return upsertCollection(ctx, t.tx, c)
}

func (t *sqliteTx) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return getCollection(ctx, t.tx, name)
}

func (t *sqliteTx) ListCollections(ctx context.Context) ([]*Collection, error) {
	return listCollections(ctx, t.tx)
}

func (t *sqliteTx) DeleteCollection(ctx context.Context, name string) error {
	return deleteCollection(ctx, t.tx, name)
}

func (t *sqliteTx) RecordRun(ctx context.Context, run *IndexRun) error {
	return recordRun(ctx, t.tx, run)
}

func (t *sqliteTx) LatestRun(ctx context.Context) (*IndexRun, error) {
	return latestRun(ctx, t.tx)
}

// Close is a no-op on a transaction; Commit or Rollback ends it
func (t *sqliteTx) Close() error {
	return nil
}

// BeginTx is not supported on a transaction (SQLite doesn't support nested transactions)
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}
