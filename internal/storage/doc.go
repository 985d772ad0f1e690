// Package storage keeps the cache manifest in SQLite.
//
// The manifest records, per collection, the SHA-256 of the source file it was
// built from, the embedding model and dimension, and the entity count. The
// indexer compares content hashes to skip unchanged collections; the status
// tool and HTTP API report from it. Embedding vectors themselves live in
// embedstore files, not in the database.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semver)
//   - collections: one row per cached collection, unique by name
//   - index_runs: summary of each cache build
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("data/manifest.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	c, err := store.GetCollection(ctx, "items")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // never indexed
//	}
//
// # Transactions
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertCollection(ctx, items)
//	_ = tx.RecordRun(ctx, run)
//	return tx.Commit()
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler:
//
//	CGO_ENABLED=0 go build ./...
//
// The sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
package storage
