package mcp

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codetalk/internal/app"
	"github.com/dshills/codetalk/internal/history"
	"github.com/dshills/codetalk/internal/logging"
)

const (
	// ServerName is the MCP server name
	ServerName = "codetalk"
	// maxSessions bounds the conversations kept in memory
	maxSessions = 64
)

// Server exposes the codebase assistant as MCP tools
type Server struct {
	mcp    *server.MCPServer
	app    *app.App
	logger *slog.Logger

	mu       sync.Mutex
	sessions *lru.Cache[string, *conversation]
}

// conversation is one client session's history. Questions within a
// session run one at a time so follow-ups see earlier answers.
type conversation struct {
	mu   sync.Mutex
	hist *history.History
}

// NewServer creates the MCP server for a
func NewServer(a *app.App, version string, logger *slog.Logger) *Server {
	sessions, err := lru.New[string, *conversation](maxSessions)
	if err != nil {
		panic(err) // Only fails for a non-positive size
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version),
		app:      a,
		logger:   logging.OrDiscard(logger),
		sessions: sessions,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("MCP server ready, listening on stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(askCodebaseTool(), s.handleAskCodebase)
	s.mcp.AddTool(searchCodebaseTool(), s.handleSearchCodebase)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
}

// conversationFor returns the conversation of the calling client session
func (s *Server) conversationFor(ctx context.Context) *conversation {
	id := ""
	if session := server.ClientSessionFromContext(ctx); session != nil {
		id = session.SessionID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions.Get(id); ok {
		return c
	}
	c := &conversation{hist: s.app.NewHistory()}
	s.sessions.Add(id, c)
	return c
}
