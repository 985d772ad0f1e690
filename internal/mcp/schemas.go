package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/searcher"
)

// Search limit bounds
const (
	MinLimit = 1
	MaxLimit = 50
)

// Tool names
const (
	ToolSearchItems   = "search_items"
	ToolSearchArcs    = "search_arcs"
	ToolSearchQuests  = "search_quests"
	ToolSearchTraders = "search_traders"
	ToolGetEvents     = "get_events"
	ToolGetStatus     = "get_status"
)

// searchTools maps each search tool to the collection it queries
var searchTools = []struct {
	name       string
	collection string
}{
	{ToolSearchItems, catalog.Items},
	{ToolSearchArcs, catalog.Arcs},
	{ToolSearchQuests, catalog.Quests},
	{ToolSearchTraders, catalog.Traders},
}

// searchTool returns the tool definition for a collection search
func searchTool(name string, def catalog.Definition) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: def.Description,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query; typos and partial names are tolerated",
					"minLength":   1,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     searcher.DefaultLimit,
					"minimum":     MinLimit,
					"maximum":     MaxLimit,
				},
				"fields": map[string]interface{}{
					"type":        "array",
					"description": "Dot-separated field paths to include in each result (e.g. 'name', 'stats.weight'); all fields when omitted",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// getEventsTool returns the tool definition for get_events
func getEventsTool(def catalog.Definition) mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetEvents,
		Description: def.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetStatus,
		Description: "Report which collections are cached, when they were built, and with which embedding model",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
