// Package mcp provides an MCP (Model Context Protocol) server exposing
// similarity search and document indexing as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/search"
	"github.com/papercomputeco/simsearch/pkg/utils"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

type Config struct {
	// Engine answers the search tool.
	Engine *search.Engine

	// Indexer backs the index_documents tool.
	Indexer *index.Indexer

	// DefaultIndex is used when a tool call names no index.
	DefaultIndex string

	// DefaultTopK is used when a search call has no k.
	DefaultTopK int

	// DefaultStrategy is used when a search call has no strategy.
	DefaultStrategy vector.Strategy

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search and index_documents
// tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "simsearch",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Engine == nil {
		return nil, errors.New("search engine is required")
	}
	if c.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if s.config.DefaultTopK <= 0 {
		s.config.DefaultTopK = 3
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        indexToolName,
		Description: indexDescription,
	}, s.handleIndexDocuments)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// indexName resolves the index a tool call targets.
func (s *Server) indexName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if s.config.DefaultIndex == "" {
		return "", errors.New("index is required")
	}
	return s.config.DefaultIndex, nil
}

// Connect serves the tools over a single transport, such as stdio.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}
