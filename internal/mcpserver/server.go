// Package mcpserver exposes the memory store over the Model Context
// Protocol on stdio, so tool-calling agents can read and write memories
// directly.
package mcpserver

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mnemod/mnemod/internal/sanitize"
	"github.com/mnemod/mnemod/internal/store"
)

// Version is stamped at build time.
var Version = "dev"

// Server wraps the MCP stdio server around a store.
type Server struct {
	store   *store.Store
	secrets *sanitize.Secrets
	logger  *slog.Logger
	mcp     *server.MCPServer
}

// New builds the MCP server with every tool registered. secrets scrubs
// inbound content before storage; nil disables scrubbing.
func New(st *store.Store, secrets *sanitize.Secrets, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   st,
		secrets: secrets,
		logger:  logger.With("component", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		"mnemod",
		Version,
		server.WithToolCapabilities(false),
	)
	s.registerMemoryTools()
	s.registerSearchTools()
	s.registerFactTools()
	s.registerMaintenanceTools()

	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return server.ServeStdio(s.mcp)
}
