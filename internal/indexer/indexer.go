package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/embedstore"
	"github.com/dshills/gamesearch-mcp/internal/metrics"
	"github.com/dshills/gamesearch-mcp/internal/storage"
)

// ErrIndexingInProgress is returned when a build is already running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Outcome of one collection in a run
const (
	OutcomeIndexed = "indexed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Embedder is what the indexer needs from the embedding provider
type Embedder interface {
	Initialize(ctx context.Context) error
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimension() int
}

// Indexer builds the on-disk cache: source JSON -> data.json, embeddings.bin,
// index.json, plus a manifest row per collection.
type Indexer struct {
	storage  storage.Storage
	embedder Embedder
	logger   *zap.Logger
	lock     IndexLock
}

// Config contains configuration for one run
type Config struct {
	SourceDir   string   // directory holding <collection>.json downloads
	DataDir     string   // cache output directory
	Collections []string // empty means every collection
	Workers     int      // concurrent collections (default: runtime.NumCPU())
	Force       bool     // rebuild even when the source is unchanged
}

// Result describes what happened to one collection
type Result struct {
	Collection  string
	Outcome     string
	Entities    int
	Dimension   int
	ContentHash string
	Bytes       int64 // size of embeddings.bin
	Duration    time.Duration
	Err         error
}

// Statistics contains statistics about a run
type Statistics struct {
	CollectionsIndexed int
	CollectionsSkipped int
	CollectionsFailed  int
	EntitiesEmbedded   int
	Duration           time.Duration
	Results            []Result // in requested order
	ErrorMessages      []string
}

// New creates a new Indexer instance
func New(store storage.Storage, emb Embedder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		storage:  store,
		embedder: emb,
		logger:   logger,
	}
}

// Running reports whether a build is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Run indexes the configured collections. A failing collection is recorded
// in the statistics and does not stop the others; Run itself fails only on
// bad configuration, cancellation, or a manifest write error.
func (idx *Indexer) Run(ctx context.Context, cfg Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	defs, err := selectDefinitions(cfg.Collections)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	startTime := time.Now()

	var model string
	if needsEmbeddings(defs) {
		if err := idx.embedder.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		model = idx.embedder.ModelName()
	}

	results := make([]Result, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, def := range defs {
		g.Go(func() error {
			results[i] = idx.indexCollection(gctx, def, cfg, model)
			return nil
		})
	}
	_ = g.Wait()

	stats := &Statistics{Results: results, ErrorMessages: make([]string, 0)}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeIndexed:
			stats.CollectionsIndexed++
			stats.EntitiesEmbedded += r.Entities
		case OutcomeSkipped:
			stats.CollectionsSkipped++
		case OutcomeFailed:
			stats.CollectionsFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.Collection, r.Err))
		}
	}
	stats.Duration = time.Since(startTime)

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if err := idx.recordManifest(ctx, cfg, results, model, startTime); err != nil {
		return stats, err
	}

	idx.logger.Info("cache build complete",
		zap.Int("indexed", stats.CollectionsIndexed),
		zap.Int("skipped", stats.CollectionsSkipped),
		zap.Int("failed", stats.CollectionsFailed),
		zap.Duration("elapsed", stats.Duration))
	return stats, nil
}

func selectDefinitions(names []string) ([]catalog.Definition, error) {
	if len(names) == 0 {
		return catalog.Definitions(), nil
	}
	seen := make(map[string]bool, len(names))
	defs := make([]catalog.Definition, 0, len(names))
	for _, name := range names {
		def, ok := catalog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownCollection, name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		defs = append(defs, def)
	}
	return defs, nil
}

func needsEmbeddings(defs []catalog.Definition) bool {
	for _, d := range defs {
		if d.Searchable {
			return true
		}
	}
	return false
}

// indexCollection never returns an error; failures land in the Result
func (idx *Indexer) indexCollection(ctx context.Context, def catalog.Definition, cfg Config, model string) Result {
	start := time.Now()
	logger := idx.logger.With(zap.String("collection", def.Name))

	res, err := idx.buildCollection(ctx, def, cfg, model, logger)
	res.Collection = def.Name
	res.Duration = time.Since(start)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		logger.Error("collection failed", zap.Error(err))
	}

	status := metrics.StatusOK
	switch res.Outcome {
	case OutcomeSkipped:
		status = metrics.StatusSkipped
	case OutcomeFailed:
		status = metrics.StatusError
	}
	metrics.CollectionsIndexedTotal.WithLabelValues(def.Name, status).Inc()
	return res
}

func (idx *Indexer) buildCollection(ctx context.Context, def catalog.Definition, cfg Config, model string, logger *zap.Logger) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	srcPath := filepath.Join(cfg.SourceDir, def.Name+".json")
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return Result{}, fmt.Errorf("read source: %w", err)
	}
	hash := computeHash(raw)

	entities, err := catalog.ParseEntities(raw)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", srcPath, err)
	}

	paths := catalog.PathsFor(cfg.DataDir, def.Name)
	if !cfg.Force {
		unchanged, err := idx.unchanged(ctx, def, paths, hash, model)
		if err != nil {
			return Result{}, err
		}
		if unchanged {
			logger.Debug("source unchanged, skipping")
			return Result{Outcome: OutcomeSkipped, Entities: len(entities), ContentHash: hash}, nil
		}
	}

	res := Result{
		Outcome:     OutcomeIndexed,
		Entities:    len(entities),
		ContentHash: hash,
	}

	var (
		vectors [][]float32
		ids     []string
		dim     int
	)
	if def.Searchable {
		ids = catalog.EntityIDs(def, entities)
		texts := make([]string, len(entities))
		for i, e := range entities {
			texts[i] = catalog.SearchableText(def, e)
			if texts[i] == "" {
				// an entity with no text still needs a vector to keep rows aligned
				texts[i] = ids[i]
				if texts[i] == "" {
					texts[i] = def.Name
				}
			}
		}

		vectors, err = idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return Result{}, fmt.Errorf("embed: %w", err)
		}
		dim = idx.embedder.Dimension()
		if len(vectors) > 0 {
			dim = len(vectors[0])
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", cfg.DataDir, err)
	}
	stage, err := os.MkdirTemp(cfg.DataDir, "."+def.Name+".staging-")
	if err != nil {
		return Result{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(stage) }()

	if err := embedstore.AtomicWrite(filepath.Join(stage, filepath.Base(paths.Data)), raw); err != nil {
		return Result{}, fmt.Errorf("write data: %w", err)
	}
	if def.Searchable {
		if err := embedstore.Save(filepath.Join(stage, filepath.Base(paths.Embeddings)), vectors, dim); err != nil {
			return Result{}, fmt.Errorf("save embeddings: %w", err)
		}
		if err := embedstore.SaveIndex(filepath.Join(stage, filepath.Base(paths.Index)), ids); err != nil {
			return Result{}, fmt.Errorf("save index: %w", err)
		}
	}
	if err := publishDir(stage, paths.Dir); err != nil {
		return Result{}, err
	}

	if !def.Searchable {
		logger.Info("collection cached", zap.Int("entities", len(entities)))
		return res, nil
	}
	res.Dimension = dim
	res.Bytes = int64(embedstore.HeaderSize + len(vectors)*dim*4)
	logger.Info("collection indexed",
		zap.Int("entities", len(entities)),
		zap.Int("dimension", dim))
	return res, nil
}

// publishDir swaps a fully written staging directory into dst. The previous
// dst is moved aside and removed only once stage is in place, and restored if
// the swap fails, so readers see either the old files or the new ones.
func publishDir(stage, dst string) error {
	backup := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".old")
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("clear %s: %w", backup, err)
	}

	hadOld := true
	if err := os.Rename(dst, backup); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move aside %s: %w", dst, err)
		}
		hadOld = false
	}
	if err := os.Rename(stage, dst); err != nil {
		if hadOld {
			_ = os.Rename(backup, dst)
		}
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	if hadOld {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// unchanged reports whether the manifest already describes this source and
// model and the output files are still on disk
func (idx *Indexer) unchanged(ctx context.Context, def catalog.Definition, paths catalog.Paths, hash, model string) (bool, error) {
	existing, err := idx.storage.GetCollection(ctx, def.Name)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.ContentHash != hash {
		return false, nil
	}
	if def.Searchable && existing.Model != model {
		return false, nil
	}

	files := []string{paths.Data}
	if def.Searchable {
		files = append(files, paths.Embeddings, paths.Index)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// recordManifest writes the rows for indexed collections and the run summary
// in one transaction
func (idx *Indexer) recordManifest(ctx context.Context, cfg Config, results []Result, model string, startTime time.Time) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	run := &storage.IndexRun{StartedAt: startTime, Model: model}
	now := time.Now()
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSkipped:
			run.Skipped++
			continue
		case OutcomeFailed:
			run.Failed++
			continue
		}
		run.Indexed++

		def, _ := catalog.Lookup(r.Collection)
		c := &storage.Collection{
			Name:            r.Collection,
			EntityCount:     r.Entities,
			Dimension:       r.Dimension,
			ContentHash:     r.ContentHash,
			SourcePath:      filepath.Join(cfg.SourceDir, r.Collection+".json"),
			EmbeddingsBytes: r.Bytes,
			IndexedAt:       now,
		}
		if def.Searchable {
			c.Model = model
		}
		if err := tx.UpsertCollection(ctx, c); err != nil {
			return err
		}
	}

	run.FinishedAt = time.Now()
	if err := tx.RecordRun(ctx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// computeHash returns the hex SHA-256 of data
func computeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
