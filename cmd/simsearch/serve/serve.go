// Package servecmder provides the serve command which runs the HTTP API and
// MCP server over the configured vector store.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/simsearch/api"
	"github.com/papercomputeco/simsearch/cmd/simsearch/stack"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/logger"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

const serveLongDesc string = `Run the simsearch API server.

Serves the HTTP API for index lifecycle, bulk indexing and similarity search,
and mounts an MCP server at /mcp exposing the "search" and "index_documents"
tools. The embedding model is loaded once at startup and shared by every
request.

When events.provider is "kafka", a batch-indexed event is published to
events.topic after every indexing request.

With --log-file, JSON logs with source locations are also appended to the
given file.

Examples:
  simsearch serve
  simsearch serve --listen :9000 --store-provider qdrant --store-target localhost:6334
  simsearch serve --json --no-mcp
  simsearch serve --log-file simsearch.log`

const serveShortDesc string = "Run the API and MCP server"

var serveFlags = []string{
	config.FlagStoreProvider,
	config.FlagStoreTarget,
	config.FlagSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagIndex,
	config.FlagMetric,
	config.FlagStrategy,
	config.FlagTopK,
	config.FlagListen,
}

type ServeCommander struct {
	jsonLogs bool
	logFile  string
	noMCP    bool
	debug    bool

	storeProvider  string
	storeTarget    string
	sqlitePath     string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	indexName      string
	metric         string
	strategy       string
	topK           uint
	listen         string

	logger *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg, configDir, err := stack.LoadConfig(cmd, serveFlags...)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cfg, configDir)
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonLogs, "json", false, "Write structured JSON logs")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")

	config.AddStringFlag(cmd, config.Flags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreTarget, &cmder.storeTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndex, &cmder.indexName)
	config.AddStringFlag(cmd, config.Flags, config.FlagMetric, &cmder.metric)
	config.AddStringFlag(cmd, config.Flags, config.FlagStrategy, &cmder.strategy)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)

	return cmd
}

func (c *ServeCommander) run(ctx context.Context, cfg *config.Config, configDir string) error {
	var logFile io.Writer
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logFile = f
	}
	c.logger = NewLogger(os.Stderr, logFile, c.jsonLogs, c.debug)

	s, err := stack.New(ctx, cfg, configDir, c.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	server, err := NewServer(cfg, s, c.noMCP)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// NewLogger builds the server logger. Console output goes to w, pretty unless
// jsonLogs is set. When logFile is non-nil every record is also written to it
// as JSON with its source location.
func NewLogger(w, logFile io.Writer, jsonLogs, debug bool) *slog.Logger {
	switch {
	case logFile == nil:
		return logger.New(
			logger.WithDebug(debug),
			logger.WithJSON(jsonLogs),
			logger.WithPretty(!jsonLogs),
			logger.WithWriter(w),
		)
	case jsonLogs:
		return logger.New(
			logger.WithDebug(debug),
			logger.WithJSON(true),
			logger.WithSource(true),
			logger.WithWriters(w, logFile),
		)
	default:
		return logger.Multi(
			logger.New(logger.WithDebug(debug), logger.WithPretty(true), logger.WithWriter(w)),
			logger.New(logger.WithDebug(debug), logger.WithJSON(true), logger.WithSource(true), logger.WithWriter(logFile)),
		)
	}
}

// NewServer builds the API server over a wired stack.
func NewServer(cfg *config.Config, s *stack.Stack, noMCP bool) (*api.Server, error) {
	return api.NewServer(api.Config{
		ListenAddr:      cfg.API.Listen,
		DefaultSchema:   s.Schema,
		DefaultTopK:     int(cfg.Search.TopK),
		DefaultStrategy: vector.Strategy(cfg.Search.Strategy),
		DisableMCP:      noMCP,
	}, s.Manager, s.Indexer, s.Engine, s.Logger)
}
