// Package mcp serves the codebase assistant over the Model Context Protocol.
//
// The server exposes four tools to MCP clients:
//   - ask_codebase: answer a question using retrieved files and the
//     conversation so far
//   - search_codebase: rank indexed files against a query
//   - index_status: report snapshot statistics
//   - rebuild_index: rescan the configured codebase and rebuild the index
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// It is started with:
//
//	codetalk serve
//
// stdout carries protocol messages only; logs go to stderr.
//
// # Conversations
//
// Each client session gets its own history, so follow-up questions to
// ask_codebase are rewritten against that session's earlier turns. Up to
// 64 sessions are remembered; the least recently used is dropped first.
//
// # Tool: ask_codebase
//
//	Request:
//	{
//	  "name": "ask_codebase",
//	  "arguments": {"question": "what does foo do?"}
//	}
//
//	Response:
//	{
//	  "answer": "foo is a function that ...",
//	  "effective_question": "what does foo do?",
//	  "sources": ["a.py", "b.py"],
//	  "attempts": 1
//	}
//
// # Tool: search_codebase
//
//	Request:
//	{
//	  "name": "search_codebase",
//	  "arguments": {"query": "database migrations", "limit": 3}
//	}
//
//	Response:
//	{
//	  "query": "database migrations",
//	  "results": [
//	    {"rank": 1, "path": "db/migrate.go", "file_type": "go", "score": 0.82, "token_count": 410}
//	  ],
//	  "total_results": 1,
//	  "duration_ms": 12
//	}
//
// # Errors
//
// Failures are returned as *MCPError with a JSON-RPC style code:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32002  a build is already running
//	-32003  no index has been built
//	-32004  empty question or query
//	-32005  the model stream kept failing after retries
package mcp
