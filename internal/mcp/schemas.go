package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// askCodebaseTool returns the tool definition for ask_codebase
func askCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_codebase",
		Description: "Answer a question about the indexed codebase. Follow-up questions use the conversation so far.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question about the code, in natural language",
				},
			},
			Required: []string{"question"},
		},
	}
}

// searchCodebaseTool returns the tool definition for search_codebase
func searchCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_codebase",
		Description: "Return the indexed files most similar to a query, best match first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"include_content": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include each file's content",
					"default":     false,
				},
				"file_types": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Only return files with these extensions, e.g. [\"go\", \"py\"]",
				},
				"path_pattern": map[string]interface{}{
					"type":        "string",
					"description": "Only return files whose path matches this glob, e.g. \"internal/*\"",
				},
				"min_relevance": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score (0-1)",
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the codebase is indexed, with snapshot statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Clear the index, rescan the configured codebase and build a fresh index",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
