// ABOUTME: MCP server exposing the device's synced baby-log state to assistants.
// ABOUTME: Writes go through the sync engine so they work offline and queue for later.
package mcp

import (
	"context"
	"errors"

	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with sync engine access.
type Server struct {
	mcpServer *mcp.Server
	engine    *sync.Engine
	log       *logger.Logger
}

// NewServer creates a new MCP server over the given engine.
func NewServer(engine *sync.Engine, log *logger.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("mcp: sync engine is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cradle",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		engine:    engine,
		log:       log.With("component", "mcp"),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
