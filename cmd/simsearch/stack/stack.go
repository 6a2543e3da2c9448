// Package stack assembles the store, embedder, schema manager, indexer and
// search engine described by a Config. Every simsearch command that touches an
// index goes through it so the embedder is loaded once per process and shared.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/simsearch/cmd/simsearch/sqlitepath"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/simsearch/pkg/embeddings/utils"
	"github.com/papercomputeco/simsearch/pkg/eventstream"
	"github.com/papercomputeco/simsearch/pkg/eventstream/kafka"
	"github.com/papercomputeco/simsearch/pkg/eventstream/nop"
	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/logger"
	"github.com/papercomputeco/simsearch/pkg/search"
	"github.com/papercomputeco/simsearch/pkg/vector"
	vectorutils "github.com/papercomputeco/simsearch/pkg/vector/utils"
)

// Stack is the wired core for one process.
type Stack struct {
	Config    *config.Config
	Schema    vector.Schema
	Driver    vector.Driver
	Embedder  embeddings.Embedder
	Publisher eventstream.Publisher
	Manager   *index.Manager
	Indexer   *index.Indexer
	Engine    *search.Engine
	Logger    *slog.Logger
}

// LoadConfig resolves the effective configuration for cmd: registered flags
// bound through viper on top of SIMSEARCH_* env, config.toml and defaults.
// It also returns the --config-dir value.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, string, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v), configDir, nil
}

// NewLogger returns the CLI logger. Only warnings reach the terminal unless
// --debug is set.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return logger.New(
		logger.WithLevel(level),
		logger.WithPretty(true),
		logger.WithWriter(cmd.ErrOrStderr()),
	)
}

// New connects to the store, loads the embedding model and wires the core.
// The schema's dimensionality defaults to the model's when not configured.
func New(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*Stack, error) {
	s := &Stack{Config: cfg, Logger: log}

	sqlitePath := ""
	if cfg.Store.Provider == "sqlite" || cfg.Store.Provider == "" {
		var err error
		sqlitePath, err = sqlitepath.ResolveSQLitePath(cfg.Store.SQLitePath, configDir)
		if err != nil {
			return nil, err
		}
	}

	embedder, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		Dimensions:   int(cfg.Embedding.Dimensions),
		CachePath:    cfg.Embedding.CachePath,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("loading embedding model: %w", err)
	}
	s.Embedder = embedder

	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = uint(embedder.Dimensions())
	}
	schema, err := cfg.Schema()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Schema = schema

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.Store.Provider,
		TargetURL:    cfg.Store.Target,
		SQLitePath:   sqlitePath,
		APIKey:       cfg.Store.APIKey,
		Logger:       log,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}
	s.Driver = driver

	publisher, err := NewPublisher(cfg.Events, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Publisher = publisher

	s.Manager = index.NewManager(driver, log)
	s.Indexer = index.NewIndexer(s.Manager, embedder, log, index.WithPublisher(publisher))
	s.Engine = search.NewEngine(s.Manager, embedder, log)

	return s, nil
}

// NewPublisher builds the configured index event publisher.
func NewPublisher(c config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "nop", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{Brokers: c.Brokers, Topic: c.Topic}, log)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", c.Provider)
	}
}

// Close releases the publisher, store and model.
func (s *Stack) Close() error {
	var errs []error
	if s.Publisher != nil {
		errs = append(errs, s.Publisher.Close())
	}
	if s.Driver != nil {
		errs = append(errs, s.Driver.Close())
	}
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	return errors.Join(errs...)
}
