package embedder

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/dshills/gamesearch-mcp/internal/embedstore"
)

const diskKeyPrefix = "vec:"

// DiskCache persists vectors in a BadgerDB keyed by content hash.
// Values use the embeddings file encoding with a single row.
type DiskCache struct {
	db *badger.DB
}

// zapBadgerLogger adapts zap to badger's logger interface.
type zapBadgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badger.Logger = (*zapBadgerLogger)(nil)

func (l *zapBadgerLogger) Errorf(msg string, items ...any)   { l.sugar.Errorf(msg, items...) }
func (l *zapBadgerLogger) Warningf(msg string, items ...any) { l.sugar.Warnf(msg, items...) }
func (l *zapBadgerLogger) Infof(msg string, items ...any)    { l.sugar.Debugf(msg, items...) }
func (l *zapBadgerLogger) Debugf(msg string, items ...any)   { l.sugar.Debugf(msg, items...) }

// OpenDiskCache opens (creating if needed) a cache at dir.
// An empty dir opens an in-memory cache.
func OpenDiskCache(dir string, logger *zap.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &zapBadgerLogger{sugar: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open vector cache: %w", err)
	}
	return &DiskCache{db: db}, nil
}

// Get returns the vector stored for hash
func (d *DiskCache) Get(hash string) ([]float32, bool, error) {
	var vec []float32
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(diskKeyPrefix + hash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rows, _, err := embedstore.Decode(val)
			if err != nil {
				return err
			}
			if len(rows) != 1 {
				return fmt.Errorf("%w: expected 1 row, got %d", embedstore.ErrCorrupted, len(rows))
			}
			vec = rows[0]
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached vector: %w", err)
	}
	return vec, true, nil
}

// Set stores vec under hash
func (d *DiskCache) Set(hash string, vec []float32) error {
	val, err := embedstore.Encode([][]float32{vec}, len(vec))
	if err != nil {
		return fmt.Errorf("encode cached vector: %w", err)
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(diskKeyPrefix+hash), val)
	})
	if err != nil {
		return fmt.Errorf("write cached vector: %w", err)
	}
	return nil
}

// Len counts stored vectors
func (d *DiskCache) Len() (int, error) {
	n := 0
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(diskKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the underlying database
func (d *DiskCache) Close() error {
	return d.db.Close()
}
