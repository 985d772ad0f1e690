// Package types provides shared type definitions for the gamesearch server.
//
// # Entities
//
// Entity is a JSON object decoded into map[string]any. Fields are addressed
// with dot-separated paths; traversing an array applies the rest of the path
// to each element:
//
//	trader := types.Entity{
//	    "name":  "Apollo",
//	    "items": []any{map[string]any{"name": "Bandage"}},
//	}
//	trader.Strings("items.name") // ["Bandage"]
//	trader.ID("name")            // "Apollo", true
//
// Document is the minimal interface generic components depend on, so a
// schema-typed record can be searched as long as it can resolve paths.
//
// # Projection
//
// ExtractFields narrows an entity to caller-selected paths. Paths deeper than
// MaxFieldDepth segments or naming __proto__, constructor or prototype are
// rejected.
//
// # Search Results
//
// ScoredID carries an id and score between ranking stages; SearchHit is the
// resolved form returned to callers. Merged scores are in [0, 1].
package types
