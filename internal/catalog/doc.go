// Package catalog names the game collections and turns their cached files
// into ready searchers.
//
// Each collection lives in its own directory under the data directory:
//
//	data/items/data.json        entities, a JSON array of objects
//	data/items/embeddings.bin   one vector per entity (see embedstore)
//	data/items/index.json       entity ids in vector order
//
// Events are loaded as a plain list and are not searchable.
package catalog
