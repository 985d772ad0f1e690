package fuzzy

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// DefaultThreshold admits moderate typos: a candidate matches when
// 1 - similarity <= threshold.
const DefaultThreshold = 0.3

// Result is a matched item with a higher-is-better score in [0, 1]
type Result[T any] struct {
	Item  T
	Score float64
	Index int // position of Item in the slice the matcher was built from
}

// Option configures a Matcher
type Option func(*config)

type config struct {
	threshold      float64
	ignoreLocation bool
}

// WithThreshold sets how loose matching is, from 0 (exact) to 1 (anything)
func WithThreshold(t float64) Option {
	return func(c *config) {
		c.threshold = min(max(t, 0), 1)
	}
}

// WithIgnoreLocation controls whether a match may start anywhere in a field.
// When false only the beginning of each field is considered.
func WithIgnoreLocation(ignore bool) Option {
	return func(c *config) { c.ignoreLocation = ignore }
}

type fieldText struct {
	full   string
	tokens []string
}

type entry[T any] struct {
	item  T
	texts []fieldText
}

// Matcher scores items by approximate string similarity over a fixed set of
// fields. It is immutable after New and safe for concurrent use.
type Matcher[T types.Document] struct {
	entries []entry[T]
	cfg     config
	metric  *metrics.Levenshtein
}

// New indexes the given fields of items
func New[T types.Document](items []T, fields []string, opts ...Option) *Matcher[T] {
	cfg := config{threshold: DefaultThreshold, ignoreLocation: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	entries := make([]entry[T], len(items))
	for i, item := range items {
		var texts []fieldText
		for _, field := range fields {
			for _, s := range types.FieldStrings(item, field) {
				full := normalize(s)
				if full == "" {
					continue
				}
				texts = append(texts, fieldText{full: full, tokens: strings.Fields(full)})
			}
		}
		entries[i] = entry[T]{item: item, texts: texts}
	}

	metric := metrics.NewLevenshtein()
	metric.CaseSensitive = false

	return &Matcher[T]{entries: entries, cfg: cfg, metric: metric}
}

// Len returns the number of indexed items
func (m *Matcher[T]) Len() int {
	return len(m.entries)
}

// Search returns items whose best field score passes the threshold, sorted by
// descending score with ties in index order. limit <= 0 returns every match.
// No match yields an empty slice.
func (m *Matcher[T]) Search(query string, limit int) []Result[T] {
	q := normalize(query)
	if q == "" {
		return []Result[T]{}
	}
	qTokens := len(strings.Fields(q))

	results := []Result[T]{}
	for i, e := range m.entries {
		best := 0.0
		for _, ft := range e.texts {
			if s := m.scoreField(q, qTokens, ft); s > best {
				best = s
			}
			if best == 1 {
				break
			}
		}
		if best > 0 && 1-best <= m.cfg.threshold {
			results = append(results, Result[T]{Item: e.item, Score: best, Index: i})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// scoreField compares the query against the whole field and against token
// windows of roughly the query's length.
func (m *Matcher[T]) scoreField(q string, qTokens int, ft fieldText) float64 {
	if m.cfg.ignoreLocation {
		if strings.Contains(ft.full, q) {
			return 1
		}
	} else if strings.HasPrefix(ft.full, q) {
		return 1
	}

	best := strutil.Similarity(q, ft.full, m.metric)
	for size := max(qTokens-1, 1); size <= qTokens+1; size++ {
		if size >= len(ft.tokens) {
			break
		}
		lastStart := len(ft.tokens) - size
		if !m.cfg.ignoreLocation {
			lastStart = 0
		}
		for start := 0; start <= lastStart; start++ {
			window := strings.Join(ft.tokens[start:start+size], " ")
			if s := strutil.Similarity(q, window, m.metric); s > best {
				best = s
			}
		}
	}
	return best
}

// normalize lowercases and collapses whitespace
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
