package types

// ScoredID pairs an entity identifier with a relevance score
type ScoredID struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Validate checks that the id is set and the score lies in [0, 1].
// Raw cosine scores may be negative; only merged results are validated.
func (s ScoredID) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if s.Score < 0 || s.Score > 1 {
		return ErrInvalidRelevanceScore
	}
	return nil
}

// SearchHit is a resolved search result
type SearchHit[T any] struct {
	Entity T
	Score  float64 // Merged score in [0, 1]
}
