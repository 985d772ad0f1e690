package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/embedder"
	"github.com/dshills/gamesearch-mcp/internal/embedstore"
	"github.com/dshills/gamesearch-mcp/internal/searcher"
	"github.com/dshills/gamesearch-mcp/internal/storage"
	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeNotCached      = -32001 // Collection files missing; run the cache command
	ErrorCodeModelNotReady  = -32002 // Embedding model failed to load in time
	ErrorCodeCorruptedCache = -32003 // Cached files are unreadable or inconsistent
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// handleSearch returns the handler for one collection's search tool
func (s *Server) handleSearch(collection string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := arguments(request)
		if err != nil {
			return nil, err
		}

		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
				"param":  "query",
				"reason": "missing or empty",
			})
		}

		limit, err := getLimit(args)
		if err != nil {
			return nil, err
		}

		fields, err := getFields(args)
		if err != nil {
			return nil, err
		}

		srch, err := s.catalog.Searcher(ctx, collection)
		if err != nil {
			return nil, searchError(collection, err)
		}

		hits, err := srch.Search(ctx, query, limit)
		if err != nil {
			return nil, searchError(collection, err)
		}

		results := make([]types.Entity, 0, len(hits))
		for _, hit := range hits {
			projected, err := types.ExtractFields(hit.Entity, fields)
			if err != nil {
				return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
			}
			results = append(results, projected)
		}

		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"results":      results,
			"totalMatches": len(results),
			"query":        query,
		})), nil
	}
}

// handleGetEvents handles the get_events tool invocation
func (s *Server) handleGetEvents(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.catalog.Events(ctx)
	if err != nil {
		return nil, searchError(catalog.Events, err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"events": events,
		"count":  len(events),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.storage.ListCollections(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read manifest", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cached := make(map[string]*storage.Collection, len(rows))
	for _, r := range rows {
		cached[r.Name] = r
	}

	collections := make([]map[string]interface{}, 0, len(catalog.Definitions()))
	for _, def := range catalog.Definitions() {
		entry := map[string]interface{}{
			"name":       def.Name,
			"searchable": def.Searchable,
			"cached":     false,
		}
		if r, ok := cached[def.Name]; ok {
			entry["cached"] = true
			entry["entities"] = r.EntityCount
			entry["dimension"] = r.Dimension
			entry["model"] = r.Model
			entry["content_hash"] = r.ContentHash
			entry["indexed_at"] = r.IndexedAt.Format(time.RFC3339)
		}
		collections = append(collections, entry)
	}

	response := map[string]interface{}{
		"collections": collections,
		"loaded":      s.catalog.Collections(),
	}

	run, err := s.storage.LatestRun(ctx)
	switch {
	case err == nil:
		response["last_run"] = map[string]interface{}{
			"finished_at": run.FinishedAt.Format(time.RFC3339),
			"duration_ms": run.Duration().Milliseconds(),
			"indexed":     run.Indexed,
			"skipped":     run.Skipped,
			"failed":      run.Failed,
			"model":       run.Model,
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, newMCPError(ErrorCodeInternalError, "failed to read manifest", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchError maps catalog, searcher, and embedder failures to MCP errors
func searchError(collection string, err error) error {
	data := map[string]interface{}{
		"collection": collection,
		"error":      err.Error(),
	}
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", data)
	case errors.Is(err, embedstore.ErrNotFound):
		return newMCPError(ErrorCodeNotCached, fmt.Sprintf("%s data not found. Run: gamesearch cache", collection), data)
	case errors.Is(err, embedstore.ErrCorrupted),
		errors.Is(err, embedstore.ErrInvalidFormat),
		errors.Is(err, embedstore.ErrUnsupportedVersion):
		return newMCPError(ErrorCodeCorruptedCache, fmt.Sprintf("%s cache is unreadable. Run: gamesearch cache --force", collection), data)
	case errors.Is(err, embedder.ErrInitializationTimeout), errors.Is(err, embedder.ErrModel):
		return newMCPError(ErrorCodeModelNotReady, "embedding model unavailable", data)
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", data)
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the call arguments; a call with none gets an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// getLimit validates the optional limit parameter
func getLimit(args map[string]interface{}) (int, error) {
	raw, present := args["limit"]
	if !present || raw == nil {
		return searcher.DefaultLimit, nil
	}

	var limit int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, limitError(raw)
		}
		limit = int(v)
	case int:
		limit = v
	default:
		return 0, limitError(raw)
	}
	if limit < MinLimit || limit > MaxLimit {
		return 0, limitError(raw)
	}
	return limit, nil
}

func limitError(value interface{}) error {
	return newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be an integer between %d and %d", MinLimit, MaxLimit), map[string]interface{}{
		"param": "limit",
		"value": value,
	})
}

// getFields validates the optional fields projection
func getFields(args map[string]interface{}) ([]string, error) {
	raw, present := args["fields"]
	if !present || raw == nil {
		return nil, nil
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "fields must be an array of strings", map[string]interface{}{
			"param": "fields",
		})
	}

	fields := make([]string, 0, len(list))
	for _, item := range list {
		field, ok := item.(string)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "fields must be an array of strings", map[string]interface{}{
				"param": "fields",
				"value": item,
			})
		}
		if err := types.ValidateFieldPath(field); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
				"param": "fields",
				"value": field,
			})
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// formatJSON formats data as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}
