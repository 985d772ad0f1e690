package embedder

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/dshills/gamesearch-mcp/internal/similarity"
)

// LocalDimension is the vector length of the local hashing model
const LocalDimension = 384

// trigramWeight scales character trigram features relative to whole tokens
const trigramWeight = 0.5

// localModel is an offline feature-hashing embedder. Each token and each
// character trigram of a token is hashed to a signed bucket; the features are
// mean-pooled and unit-normalized. Texts sharing words or word fragments land
// close together, which is enough for deterministic offline runs and tests.
type localModel struct {
	name string
	dim  int
}

// LoadLocal is the Loader for the local hashing model
func LoadLocal(_ context.Context, cfg Config) (Model, error) {
	dim := LocalDimension
	if cfg.Dimensions > 0 {
		dim = cfg.Dimensions
	}
	return &localModel{name: "local-hashing", dim: dim}, nil
}

func (l *localModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embedOne(text)
	}
	return out, nil
}

func (l *localModel) embedOne(text string) []float32 {
	acc := make([]float64, l.dim)
	features := 0

	add := func(feature string, weight float64) {
		h := xxhash.Sum64String(feature)
		bucket := int(h % uint64(l.dim))
		if h&(1<<63) != 0 {
			weight = -weight
		}
		acc[bucket] += weight
		features++
	}

	for _, tok := range tokenize(text) {
		add("t:"+tok, 1)
		padded := "#" + tok + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			add("c:"+string(runes[i:i+3]), trigramWeight)
		}
	}

	vec := make([]float32, l.dim)
	if features == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / float64(features))
	}
	return similarity.NormalizeVector(vec)
}

func (l *localModel) Dimension() int       { return l.dim }
func (l *localModel) Name() string         { return l.name }
func (l *localModel) ConcurrentSafe() bool { return true }
func (l *localModel) Close() error         { return nil }

// tokenize lowercases text and splits it on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
