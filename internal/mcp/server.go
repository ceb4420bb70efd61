package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/signscope/internal/app"
)

const (
	// ServerName is the MCP server name
	ServerName = "signscope"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	app *app.App
}

// NewServer creates a new MCP server instance backed by an assembled engine
func NewServer(a *app.App) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("engine not initialized")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp: mcpServer,
		app: a,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Register search_markers tool
	s.mcp.AddTool(searchMarkersTool(), s.handleSearchMarkers)

	// Register cache_status tool
	s.mcp.AddTool(cacheStatusTool(), s.handleCacheStatus)

	// Register save_cache tool
	s.mcp.AddTool(saveCacheTool(), s.handleSaveCache)

	// Register clear_cache tool
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)

	// Register validate_cache tool
	s.mcp.AddTool(validateCacheTool(), s.handleValidateCache)

	return nil
}
