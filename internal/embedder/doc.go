// Package embedder turns text into vectors for semantic search.
//
// A Provider wraps a Model that is loaded lazily and shared process-wide:
//
//	p, err := embedder.New(embedder.Config{Provider: "local"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	vec, err := p.Embed(ctx, "glow stick")
//
// # Initialization
//
// The first Embed (or an explicit Initialize) loads the model. Concurrent
// callers wait on the same load, which is bounded by Config.InitTimeout
// (120s by default) and reports ErrInitializationTimeout when exceeded. A
// failed load is forgotten so the next call tries again. Dispose releases the
// model; a load that was in flight at that moment is discarded.
//
// # Backends
//
// Models are supplied by a Loader:
//
//   - local: offline feature hashing over tokens and character trigrams,
//     384 dimensions, unit length. Deterministic; suitable for tests.
//   - openai: any OpenAI-compatible /v1/embeddings endpoint, including
//     self-hosted servers for sentence-transformer models (set BaseURL).
//
// Models that are not safe for concurrent inference are serialized inside
// the Provider.
//
// # Batches
//
// EmbedBatch preserves input order and fails fast: the first failing text
// aborts the batch and its index appears in the error.
//
// # Caching
//
// Vectors are cached by SHA-256 of model name and text, first in an LRU
// (Config.CacheSize entries), then optionally in a BadgerDB under
// CacheDir/vectors that survives restarts.
package embedder
