// Package mcp implements the Model Context Protocol (MCP) server for gamesearch.
//
// The server exposes six tools over stdio:
//   - search_items, search_arcs, search_quests, search_traders: hybrid search
//     over one collection
//   - get_events: the current event list
//   - get_status: what is cached and when it was built
//
// # Tool: search_items
//
//	Request:
//	{
//	  "name": "search_items",
//	  "arguments": {
//	    "query": "glow stik",
//	    "limit": 3,
//	    "fields": ["name", "rarity"]
//	  }
//	}
//
//	Response:
//	{
//	  "results": [{"name": "Blue Light Stick", "rarity": "Common"}],
//	  "totalMatches": 1,
//	  "query": "glow stik"
//	}
//
// limit defaults to 5 and must be between 1 and 50. fields are dot-separated
// paths, at most four segments deep; __proto__, constructor, and prototype
// segments are rejected.
//
// # Errors
//
// Handlers return *MCPError with JSON-RPC codes:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  collection not cached (run `gamesearch cache`)
//	-32002  embedding model unavailable
//	-32003  cache files unreadable or inconsistent
//	-32004  empty query
//
// Searchers are built lazily on the first call for each collection and reused.
package mcp
