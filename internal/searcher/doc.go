// Package searcher implements hybrid search over one collection of entities,
// combining embedding similarity with fuzzy string matching.
//
// # Basic Usage
//
//	s, err := searcher.New(entities, vectors, provider, searcher.Config{
//	    Name:        "items",
//	    IDField:     "id",
//	    FuzzyFields: []string{"name", "description", "item_type"},
//	})
//	if err != nil {
//	    return err
//	}
//
//	hits, err := s.Search(ctx, "glow stick", 5)
//	for _, hit := range hits {
//	    fmt.Printf("%v (score: %.2f)\n", hit.Entity["name"], hit.Score)
//	}
//
// # Ranking
//
// A search runs two stages concurrently, each producing 2*limit candidates:
//
//   - Semantic: the query is embedded and compared by cosine similarity
//     with every stored vector.
//   - Lexical: the fuzzy matcher scores the configured fields.
//
// MergeResults then combines them:
//
//	score(id) = semantic(id) * 1.5   if id is in both lists
//	          = semantic(id)         if id is only semantic
//	          = fuzzy(id)            if id is only fuzzy
//
// clamped to [0, 1], sorted descending with ties broken by rank within the
// originating list and then by id, and truncated to limit.
//
// # Errors
//
// New fails with similarity.ErrDimensionMismatch when entity and embedding
// counts differ or stored vectors disagree on dimension. Search returns
// embedding errors unchanged (wrapped) and fails on a query vector whose
// dimension differs from the collection's. Merged ids that do not resolve to
// an entity are dropped.
package searcher
