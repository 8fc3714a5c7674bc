package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codetalk/internal/indexer"
	"github.com/dshills/codetalk/internal/orchestrator"
	"github.com/dshills/codetalk/internal/vectorstore"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // No index has been built
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeRetriesExhausted   = -32005 // Model stream kept failing
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 100
)

// handleAskCodebase handles the ask_codebase tool invocation
func (s *Server) handleAskCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(getStringDefault(args, "question", ""))
	if question == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	conv := s.conversationFor(ctx)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	// stdout carries the protocol, so nothing streams
	res, err := s.app.Answer(ctx, question, conv.hist, io.Discard)
	if err != nil {
		return nil, toolError("answer failed", err)
	}

	sources := make([]string, len(res.Retrieval.Results))
	for i, r := range res.Retrieval.Results {
		sources[i] = r.Document.SourcePath
	}

	response := map[string]interface{}{
		"answer":             res.Answer,
		"effective_question": res.EffectiveQuestion,
		"sources":            sources,
		"attempts":           res.Attempts,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCodebase handles the search_codebase tool invocation
func (s *Server) handleSearchCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	includeContent := getBoolDefault(args, "include_content", false)

	filters, err := searchFilters(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.app.Search(ctx, query, limit, filters)
	if err != nil {
		return nil, toolError("search failed", err)
	}

	results := make([]map[string]interface{}, len(res.Results))
	for i, r := range res.Results {
		item := map[string]interface{}{
			"rank":        r.Rank,
			"path":        r.Document.SourcePath,
			"file_type":   r.Document.FileType,
			"score":       r.Score,
			"token_count": r.Document.TokenCount,
		}
		if includeContent {
			item["content"] = r.Document.Content
		}
		results[i] = item
	}

	response := map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_results": len(results),
		"duration_ms":   time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := s.app.Config()

	status, err := s.app.Status(ctx)
	if errors.Is(err, vectorstore.ErrStoreNotFound) {
		response := map[string]interface{}{
			"indexed":       false,
			"codebase_path": cfg.CodebasePath,
			"message":       "Codebase not indexed. Use the rebuild_index tool to index it.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, toolError("failed to get status", err)
	}

	response := map[string]interface{}{
		"indexed": true,
		"statistics": map[string]interface{}{
			"documents_count":  status.DocumentsCount,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
		},
	}
	if snap := status.Snapshot; snap != nil {
		response["snapshot"] = map[string]interface{}{
			"id":             snap.ID,
			"codebase_path":  snap.RootPath,
			"total_tokens":   snap.TotalTokens,
			"budget_reached": snap.BudgetReached,
			"provider":       snap.Provider,
			"model":          snap.Model,
			"dimension":      snap.Dimension,
			"built_at":       snap.CreatedAt.Format(time.RFC3339),
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.app.Rebuild(ctx)
	if err != nil {
		return nil, toolError("indexing failed", err)
	}

	response := map[string]interface{}{
		"indexed":            true,
		"snapshot_id":        report.Stats.SnapshotID,
		"documents_indexed":  report.Stats.DocumentsIndexed,
		"documents_skipped":  report.Stats.DocumentsSkipped,
		"files_unreadable":   report.Scan.FilesSkipped,
		"total_tokens":       report.Scan.TotalTokens,
		"budget_reached":     report.Scan.BudgetReached,
		"embeddings_created": report.Stats.EmbeddingsCreated,
		"duration_ms":        report.Stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// searchFilters reads the optional search_codebase filter parameters
func searchFilters(args map[string]interface{}) (vectorstore.Filters, error) {
	var f vectorstore.Filters

	fileTypes, err := getStringSlice(args, "file_types")
	if err != nil {
		return f, err
	}
	for _, ft := range fileTypes {
		if ft = strings.TrimPrefix(strings.TrimSpace(ft), "."); ft != "" {
			f.FileTypes = append(f.FileTypes, ft)
		}
	}

	f.PathPattern = strings.TrimSpace(getStringDefault(args, "path_pattern", ""))

	f.MinRelevance = getFloatDefault(args, "min_relevance", 0)
	if f.MinRelevance < 0 || f.MinRelevance > 1 {
		return f, newMCPError(ErrorCodeInvalidParams, "min_relevance must be between 0 and 1", map[string]interface{}{
			"param": "min_relevance",
			"value": f.MinRelevance,
		})
	}
	return f, nil
}

// toolError maps domain errors onto MCP error codes
func toolError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, vectorstore.ErrStoreNotFound):
		code = ErrorCodeNotIndexed
		message = "codebase not indexed, run rebuild_index first"
	case errors.Is(err, indexer.ErrBuildInProgress):
		code = ErrorCodeIndexingInProgress
	case errors.Is(err, vectorstore.ErrEmptyQuery), errors.Is(err, orchestrator.ErrEmptyQuestion):
		code = ErrorCodeEmptyQuery
	case errors.Is(err, orchestrator.ErrExhaustedRetries):
		code = ErrorCodeRetriesExhausted
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

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

// arguments returns the call arguments; tools without parameters may get none
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

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	invalid := newMCPError(ErrorCodeInvalidParams, key+" must be an array of strings", map[string]interface{}{
		"param": key,
	})

	switch vals := raw.(type) {
	case []string:
		return vals, nil
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			str, ok := v.(string)
			if !ok {
				return nil, invalid
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, invalid
}
