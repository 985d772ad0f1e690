package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/gamesearch-mcp/internal/embedstore"
	"github.com/dshills/gamesearch-mcp/internal/metrics"
	"github.com/dshills/gamesearch-mcp/internal/searcher"
	"github.com/dshills/gamesearch-mcp/pkg/types"
)

var (
	// ErrUnknownCollection is returned for a name with no definition
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrNotSearchable is returned when a searcher is requested for a plain collection
	ErrNotSearchable = errors.New("collection is not searchable")
)

// Searcher is the searcher type every collection uses
type Searcher = searcher.HybridSearcher[types.Entity]

// Embedder is what the catalog needs from the embedding provider
type Embedder interface {
	searcher.Embedder
	Initialize(ctx context.Context) error
}

// Catalog loads collections from the data directory on first use and keeps
// them. Concurrent requests for the same collection share one build; failed
// builds are not cached, and neither are builds overtaken by Invalidate.
type Catalog struct {
	dataDir  string
	embedder Embedder
	logger   *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	searchers map[string]*Searcher
	events    []types.Entity
	// gen is bumped by Invalidate; a load started under an older gen is
	// handed to its waiters but not kept
	gen uint64

	// loadHook runs at the start of every load when set
	loadHook func(name string)
}

// New creates a catalog over dataDir
func New(dataDir string, emb Embedder, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		dataDir:   dataDir,
		embedder:  emb,
		logger:    logger,
		searchers: make(map[string]*Searcher),
	}
}

// DataDir returns the directory collections are read from
func (c *Catalog) DataDir() string { return c.dataDir }

// Collections returns the loaded searchable collections, sorted by name
func (c *Catalog) Collections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.searchers))
	for name := range c.searchers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Searcher returns the searcher for name, building it on first use.
// ctx only bounds how long this caller waits for a build in progress.
func (c *Catalog) Searcher(ctx context.Context, name string) (*Searcher, error) {
	def, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	if !def.Searchable {
		return nil, fmt.Errorf("%w: %s", ErrNotSearchable, name)
	}

	c.mu.RLock()
	s, ok := c.searchers[name]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	ch := c.group.DoChan(searcherKey(name), func() (any, error) {
		c.mu.RLock()
		s, ok := c.searchers[name]
		gen := c.gen
		c.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := c.build(def)
		status := metrics.StatusOK
		if err != nil {
			status = metrics.StatusError
		}
		metrics.SearcherBuildsTotal.WithLabelValues(name, status).Inc()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.searchers[name] = s
		} else {
			c.logger.Debug("collection invalidated during load, not caching", zap.String("collection", name))
		}
		c.mu.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Searcher), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Catalog) build(def Definition) (*Searcher, error) {
	if c.loadHook != nil {
		c.loadHook(def.Name)
	}
	start := time.Now()
	paths := PathsFor(c.dataDir, def.Name)
	logger := c.logger.With(zap.String("collection", def.Name))

	entities, err := LoadEntities(paths.Data)
	if err != nil {
		return nil, missingHint(def.Name, err)
	}

	vectors, dim, err := embedstore.Load(paths.Embeddings)
	if err != nil {
		return nil, missingHint(def.Name, err)
	}
	if len(vectors) != len(entities) {
		return nil, fmt.Errorf("%w: %s has %d entities but %d embeddings",
			embedstore.ErrCorrupted, def.Name, len(entities), len(vectors))
	}

	ids, err := embedstore.LoadIndex(paths.Index)
	switch {
	case errors.Is(err, embedstore.ErrNotFound):
		logger.Debug("no index file, trusting data order")
	case err != nil:
		return nil, err
	case !slices.Equal(ids, EntityIDs(def, entities)):
		return nil, fmt.Errorf("%w: %s index does not match data order",
			embedstore.ErrCorrupted, def.Name)
	}

	s, err := searcher.New(entities, vectors, c.embedder, searcher.Config{
		Name:        def.Name,
		IDField:     def.IDField,
		FuzzyFields: def.FuzzyFields,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s searcher: %w", def.Name, err)
	}

	logger.Info("collection ready",
		zap.Int("entities", len(entities)),
		zap.Int("dimension", dim),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}

// Events returns the events collection, loading it once
func (c *Catalog) Events(ctx context.Context) ([]types.Entity, error) {
	c.mu.RLock()
	events := c.events
	c.mu.RUnlock()
	if events != nil {
		return events, nil
	}

	ch := c.group.DoChan(eventsKey, func() (any, error) {
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()
		if c.loadHook != nil {
			c.loadHook(Events)
		}

		events, err := LoadEntities(PathsFor(c.dataDir, Events).Data)
		if err != nil {
			return nil, missingHint(Events, err)
		}
		c.mu.Lock()
		if c.gen == gen {
			c.events = events
		}
		c.mu.Unlock()
		c.logger.Info("events loaded", zap.Int("count", len(events)))
		return events, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]types.Entity), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Warm initializes the embedder and builds every searchable collection.
// It stops at the first failure.
func (c *Catalog) Warm(ctx context.Context) error {
	if err := c.embedder.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	for _, def := range SearchableDefinitions() {
		if _, err := c.Searcher(ctx, def.Name); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops cached searchers (all when no names are given) so the
// next request reloads them from disk. Loads already in flight still answer
// their waiters but their result is discarded.
func (c *Catalog) Invalidate(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if len(names) == 0 {
		c.searchers = make(map[string]*Searcher)
		c.events = nil
		for _, def := range Definitions() {
			c.group.Forget(searcherKey(def.Name))
		}
		c.group.Forget(eventsKey)
		return
	}
	for _, name := range names {
		if name == Events {
			c.events = nil
			c.group.Forget(eventsKey)
			continue
		}
		delete(c.searchers, name)
		c.group.Forget(searcherKey(name))
	}
}

const eventsKey = "events"

func searcherKey(name string) string { return "searcher:" + name }

func missingHint(name string, err error) error {
	if errors.Is(err, embedstore.ErrNotFound) {
		return fmt.Errorf("%s data not found, run `gamesearch cache`: %w", name, err)
	}
	return fmt.Errorf("load %s: %w", name, err)
}
