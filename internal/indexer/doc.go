// Package indexer builds the search cache from downloaded game data.
//
// For every collection it reads <source>/<collection>.json, and when the
// content hash differs from the manifest (or Force is set) it writes:
//
//	<data>/<collection>/data.json
//	<data>/<collection>/embeddings.bin
//	<data>/<collection>/index.json
//
// Events are copied without embeddings. Collections are processed
// concurrently, bounded by Config.Workers. One collection failing does not
// stop the rest; its error is reported in Statistics.Results.
//
// Only one Run may be active per Indexer; a concurrent Run returns
// ErrIndexingInProgress.
package indexer
