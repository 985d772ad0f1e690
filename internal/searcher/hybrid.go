package searcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gamesearch-mcp/internal/fuzzy"
	"github.com/dshills/gamesearch-mcp/internal/metrics"
	"github.com/dshills/gamesearch-mcp/internal/similarity"
	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// DefaultLimit is the number of results returned when no limit is given
const DefaultLimit = 5

// candidateFactor widens each ranking stage so the merge can promote
// fuzzy-only matches without starving semantic recall.
const candidateFactor = 2

// ctxCheckInterval is how many vectors are scored between context checks
const ctxCheckInterval = 256

// ErrEmptyQuery is returned for a blank query
var ErrEmptyQuery = errors.New("query cannot be empty")

// Embedder produces the query vector. *embedder.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config describes one collection
type Config struct {
	Name           string   // collection name, used for metrics and logs
	IDField        string   // field holding each entity's unique id
	FuzzyFields    []string // fields the fuzzy matcher indexes
	FuzzyThreshold float64  // 0 uses fuzzy.DefaultThreshold
	Logger         *zap.Logger
}

// HybridSearcher ranks a fixed set of entities against a query using
// embedding similarity and fuzzy matching. It is immutable once built and
// safe for concurrent Search calls.
type HybridSearcher[T types.Document] struct {
	name       string
	entities   []T
	embeddings [][]float32
	ids        []string // ids[i] is the id of entities[i]; "" when unresolvable
	byID       map[string]int
	dimension  int
	matcher    *fuzzy.Matcher[T]
	embedder   Embedder
	logger     *zap.Logger
}

// New builds a searcher. embeddings[i] must be the vector of entities[i];
// a length or dimension mismatch fails with similarity.ErrDimensionMismatch.
func New[T types.Document](entities []T, embeddings [][]float32, emb Embedder, cfg Config) (*HybridSearcher[T], error) {
	if len(entities) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d entities but %d embeddings",
			similarity.ErrDimensionMismatch, len(entities), len(embeddings))
	}
	if emb == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.IDField == "" {
		cfg.IDField = "id"
	}

	dimension := 0
	if len(embeddings) > 0 {
		dimension = len(embeddings[0])
	}
	for i, vec := range embeddings {
		if len(vec) != dimension {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d",
				similarity.ErrDimensionMismatch, i, len(vec), dimension)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ids := make([]string, len(entities))
	byID := make(map[string]int, len(entities))
	var missing, duplicate int
	for i, e := range entities {
		id, ok := types.DocumentID(e, cfg.IDField)
		if !ok {
			missing++
			continue
		}
		if _, dup := byID[id]; dup {
			duplicate++
			continue
		}
		ids[i] = id
		byID[id] = i
	}
	if missing > 0 || duplicate > 0 {
		logger.Warn("entities excluded from search",
			zap.String("collection", cfg.Name),
			zap.String("id_field", cfg.IDField),
			zap.Int("missing_id", missing),
			zap.Int("duplicate_id", duplicate))
	}

	var fuzzyOpts []fuzzy.Option
	if cfg.FuzzyThreshold > 0 {
		fuzzyOpts = append(fuzzyOpts, fuzzy.WithThreshold(cfg.FuzzyThreshold))
	}

	return &HybridSearcher[T]{
		name:       cfg.Name,
		entities:   entities,
		embeddings: embeddings,
		ids:        ids,
		byID:       byID,
		dimension:  dimension,
		matcher:    fuzzy.New(entities, cfg.FuzzyFields, fuzzyOpts...),
		embedder:   emb,
		logger:     logger,
	}, nil
}

// Search returns up to limit entities ranked by merged semantic and fuzzy
// score. limit <= 0 uses DefaultLimit. Embedding failures and query/stored
// dimension mismatches are returned as errors; no partial results are
// returned with an error.
func (h *HybridSearcher[T]) Search(ctx context.Context, query string, limit int) ([]types.SearchHit[T], error) {
	start := time.Now()
	hits, err := h.search(ctx, query, limit)

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.SearchRequestsTotal.WithLabelValues(h.name, status).Inc()
	metrics.SearchDuration.WithLabelValues(h.name).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	h.logger.Debug("search complete",
		zap.String("collection", h.name),
		zap.String("query", query),
		zap.Int("results", len(hits)),
		zap.Duration("elapsed", time.Since(start)))
	return hits, nil
}

func (h *HybridSearcher[T]) search(ctx context.Context, query string, limit int) ([]types.SearchHit[T], error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	candidates := limit * candidateFactor

	var semantic, lexical []types.ScoredID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queryVec, err := h.embedder.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		semantic, err = h.rankSemantic(gctx, queryVec, candidates)
		return err
	})
	g.Go(func() error {
		lexical = h.rankFuzzy(query, candidates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := MergeResults(semantic, lexical, limit)

	hits := make([]types.SearchHit[T], 0, len(merged))
	for _, m := range merged {
		idx, ok := h.byID[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, types.SearchHit[T]{Entity: h.entities[idx], Score: m.Score})
	}
	return hits, nil
}

// rankSemantic scores every stored vector against queryVec and keeps the best k
func (h *HybridSearcher[T]) rankSemantic(ctx context.Context, queryVec []float32, k int) ([]types.ScoredID, error) {
	if len(h.embeddings) > 0 && len(queryVec) != h.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q has %d",
			similarity.ErrDimensionMismatch, len(queryVec), h.name, h.dimension)
	}

	scored := make([]types.ScoredID, 0, len(h.embeddings))
	for i, vec := range h.embeddings {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if h.ids[i] == "" {
			continue
		}
		score, err := similarity.CosineSimilarity(queryVec, vec)
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", h.ids[i], err)
		}
		scored = append(scored, types.ScoredID{ID: h.ids[i], Score: score})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// rankFuzzy keeps the best k lexical matches that have an id. Entities
// without one are dropped before the cut so they never use up a slot.
func (h *HybridSearcher[T]) rankFuzzy(query string, k int) []types.ScoredID {
	results := h.matcher.Search(query, 0)
	scored := make([]types.ScoredID, 0, min(k, len(results)))
	for _, r := range results {
		if len(scored) == k {
			break
		}
		if id := h.ids[r.Index]; id != "" {
			scored = append(scored, types.ScoredID{ID: id, Score: r.Score})
		}
	}
	return scored
}

// Get returns the entity with the given id
func (h *HybridSearcher[T]) Get(id string) (T, bool) {
	idx, ok := h.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return h.entities[idx], true
}

// Name returns the collection name
func (h *HybridSearcher[T]) Name() string { return h.name }

// Len returns the number of entities
func (h *HybridSearcher[T]) Len() int { return len(h.entities) }

// Dimension returns the stored vector length, 0 for an empty collection
func (h *HybridSearcher[T]) Dimension() int { return h.dimension }
