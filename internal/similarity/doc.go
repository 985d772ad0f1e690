// Package similarity provides the vector math used to rank embeddings.
//
// All functions are pure and operate on float32 vectors, accumulating in
// float64 to limit rounding error over 384+ dimensions.
//
//	score, err := similarity.CosineSimilarity(query, stored)
//	if errors.Is(err, similarity.ErrDimensionMismatch) {
//	    // query and stored vectors came from different models
//	}
//
// Degenerate vectors never abort a ranking pass: a vector whose magnitude is
// below 1e-10 scores 0 against everything, and a NaN result is reported as 0.
package similarity
