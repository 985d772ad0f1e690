package searcher

import (
	"sort"

	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// BoostFactor multiplies the semantic score of an id that the fuzzy matcher
// also found.
const BoostFactor = 1.5

type mergeCandidate struct {
	types.ScoredID
	rank int // position within the list the candidate came from
}

// MergeResults combines semantic and fuzzy rankings into one list.
//
// Semantic candidates keep their score, multiplied by BoostFactor when the id
// also appears in fuzzy. Fuzzy-only ids are added with their fuzzy score.
// Scores are clamped to [0, 1] and sorted descending; equal scores are
// ordered by rank within their originating list, then by id. limit <= 0
// keeps everything. Neither input is modified.
func MergeResults(semantic, fuzzy []types.ScoredID, limit int) []types.ScoredID {
	inFuzzy := make(map[string]struct{}, len(fuzzy))
	for _, f := range fuzzy {
		inFuzzy[f.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(semantic)+len(fuzzy))
	candidates := make([]mergeCandidate, 0, len(semantic)+len(fuzzy))

	for rank, s := range semantic {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}

		score := s.Score
		if _, ok := inFuzzy[s.ID]; ok {
			score *= BoostFactor
		}
		candidates = append(candidates, mergeCandidate{
			ScoredID: types.ScoredID{ID: s.ID, Score: clamp01(score)},
			rank:     rank,
		})
	}

	for rank, f := range fuzzy {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		candidates = append(candidates, mergeCandidate{
			ScoredID: types.ScoredID{ID: f.ID, Score: clamp01(f.Score)},
			rank:     rank,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]types.ScoredID, len(candidates))
	for i, c := range candidates {
		out[i] = c.ScoredID
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
