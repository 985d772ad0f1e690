package catalog

import (
	"path/filepath"
	"strings"

	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// Collection names
const (
	Items   = "items"
	Arcs    = "arcs"
	Quests  = "quests"
	Traders = "traders"
	Events  = "events"
)

// File names inside a collection directory
const (
	DataFileName = "data.json"
)

// Definition describes how one collection is identified, matched, and embedded
type Definition struct {
	Name        string
	Description string
	IDField     string
	FuzzyFields []string
	TextFields  []string // joined to form the text that is embedded
	Searchable  bool
}

var definitions = []Definition{
	{
		Name:        Items,
		Description: "Search for items by name, type, or description. Returns matching items with their stats, rarity, and crafting info.",
		IDField:     "id",
		FuzzyFields: []string{"name", "description", "item_type"},
		TextFields:  []string{"name", "description", "item_type", "rarity"},
		Searchable:  true,
	},
	{
		Name:        Arcs,
		Description: "Search for ARCs (enemies) by name or description. Returns ARC types with threat levels and behavior info.",
		IDField:     "id",
		FuzzyFields: []string{"name", "description"},
		TextFields:  []string{"name", "description"},
		Searchable:  true,
	},
	{
		Name:        Quests,
		Description: "Search for quests by name, objectives, or trader. Returns quest details including rewards and requirements.",
		IDField:     "id",
		FuzzyFields: []string{"name", "trader_name"},
		TextFields:  []string{"name", "objectives", "trader_name"},
		Searchable:  true,
	},
	{
		Name:        Traders,
		Description: "Search for traders and their inventories. Returns trader info and available items for purchase.",
		IDField:     "name",
		FuzzyFields: []string{"name"},
		TextFields:  []string{"name", "items.name", "items.description"},
		Searchable:  true,
	},
	{
		Name:        Events,
		Description: "Get current and upcoming game events. Returns event schedules, rewards, and timers.",
		IDField:     "id",
	},
}

// Definitions returns every collection in a fixed order
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// SearchableDefinitions returns the collections that carry embeddings
func SearchableDefinitions() []Definition {
	var out []Definition
	for _, d := range definitions {
		if d.Searchable {
			out = append(out, d)
		}
	}
	return out
}

// Lookup finds a definition by name
func Lookup(name string) (Definition, bool) {
	for _, d := range definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Names returns the collection names, optionally only searchable ones
func Names(searchableOnly bool) []string {
	var out []string
	for _, d := range definitions {
		if searchableOnly && !d.Searchable {
			continue
		}
		out = append(out, d.Name)
	}
	return out
}

// SearchableText is the text embedded for e: the values of the definition's
// text fields, flattened and joined with single spaces.
func SearchableText(def Definition, e types.Document) string {
	var parts []string
	for _, field := range def.TextFields {
		for _, s := range types.FieldStrings(e, field) {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}

// Paths locates a collection's files under a data directory
type Paths struct {
	Dir        string
	Data       string
	Embeddings string
	Index      string
}

// PathsFor returns the file locations for collection name under dataDir
func PathsFor(dataDir, name string) Paths {
	dir := filepath.Join(dataDir, name)
	return Paths{
		Dir:        dir,
		Data:       filepath.Join(dir, DataFileName),
		Embeddings: filepath.Join(dir, embedstoreFileName),
		Index:      filepath.Join(dir, embedstoreIndexName),
	}
}
