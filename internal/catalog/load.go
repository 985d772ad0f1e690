package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dshills/gamesearch-mcp/internal/embedstore"
	"github.com/dshills/gamesearch-mcp/pkg/types"
)

const (
	embedstoreFileName  = embedstore.FileName
	embedstoreIndexName = embedstore.IndexFileName
)

// LoadEntities reads a JSON array of objects from path
func LoadEntities(path string) ([]types.Entity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", embedstore.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseEntities(data)
}

// ParseEntities decodes a JSON array of objects. Numbers are kept as
// json.Number so large ids survive unchanged.
func ParseEntities(data []byte) ([]types.Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", embedstore.ErrInvalidFormat, err)
	}

	entities := make([]types.Entity, len(raw))
	for i, elem := range raw {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", embedstore.ErrInvalidFormat, i)
		}
		entities[i] = types.Entity(obj)
	}
	return entities, nil
}

// EntityIDs returns the id of each entity in order, "" where it has none
func EntityIDs(def Definition, entities []types.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i], _ = e.ID(def.IDField)
	}
	return ids
}
