package storage

import (
	"context"
	"time"
)

// Storage persists the cache manifest: what was indexed, when, and with
// which model.
type Storage interface {
	// Collection operations
	UpsertCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	DeleteCollection(ctx context.Context, name string) error

	// Run history
	RecordRun(ctx context.Context, run *IndexRun) error
	LatestRun(ctx context.Context) (*IndexRun, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Collection is the manifest row for one cached collection
type Collection struct {
	ID              int64
	Name            string
	EntityCount     int
	Dimension       int
	Model           string
	ContentHash     string // hex SHA-256 of the source file
	SourcePath      string
	EmbeddingsBytes int64
	IndexedAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IndexRun summarizes one cache build
type IndexRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Indexed    int
	Skipped    int
	Failed     int
	Model      string
}

// Duration returns how long the run took
func (r *IndexRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
