package api

import (
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/simsearch/api/mcp"
	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/search"
)

// Server is the API server for managing and querying vector indexes.
type Server struct {
	config  Config
	manager *index.Manager
	indexer *index.Indexer
	engine  *search.Engine
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server. The manager, indexer and engine are
// injected so they can be shared with other components.
func NewServer(config Config, manager *index.Manager, indexer *index.Indexer, engine *search.Engine, logger *slog.Logger) (*Server, error) {
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = 3
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		manager: manager,
		indexer: indexer,
		engine:  engine,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Put("/indexes/:name", s.handleEnsureIndex)
	v1.Get("/indexes/:name", s.handleDescribeIndex)
	v1.Delete("/indexes/:name", s.handleDeleteIndex)
	v1.Post("/indexes/:name/documents", s.handleIndexDocuments)
	v1.Delete("/indexes/:name/documents/:id", s.handleDeleteDocument)
	v1.Get("/indexes/:name/search", s.handleSearch)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Engine:          engine,
			Indexer:         indexer,
			DefaultIndex:    config.DefaultSchema.Name,
			DefaultTopK:     config.DefaultTopK,
			DefaultStrategy: config.DefaultStrategy,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", !s.config.DisableMCP,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
