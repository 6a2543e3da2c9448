// Package resetcmder provides the reset command which drops and recreates the
// configured index.
package resetcmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/simsearch/cmd/simsearch/stack"
	"github.com/papercomputeco/simsearch/pkg/cliui"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/dotdir"
)

const resetLongDesc string = `Drop and recreate the configured index.

Every document in the index is deleted. The index is recreated with the
configured metric, text fields and the embedding model's dimensionality,
and the model is recorded in .simsearch/indexes.json so later "index" runs
can detect a model change.

Examples:
  simsearch reset
  simsearch reset --index articles --metric dot_product
  simsearch reset --store-provider postgres --store-target postgres://localhost/simsearch`

const resetShortDesc string = "Drop and recreate an index"

var resetFlags = []string{
	config.FlagStoreProvider,
	config.FlagStoreTarget,
	config.FlagSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagIndex,
	config.FlagMetric,
}

type resetCommander struct {
	storeProvider  string
	storeTarget    string
	sqlitePath     string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	indexName      string
	metric         string
}

func NewResetCmd() *cobra.Command {
	cmder := &resetCommander{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: resetShortDesc,
		Long:  resetLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, configDir, err := stack.LoadConfig(cmd, resetFlags...)
			if err != nil {
				return err
			}
			s, err := stack.New(cmd.Context(), cfg, configDir, stack.NewLogger(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			return Run(cmd.Context(), cmd.OutOrStdout(), s, configDir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreTarget, &cmder.storeTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndex, &cmder.indexName)
	config.AddStringFlag(cmd, config.Flags, config.FlagMetric, &cmder.metric)

	return cmd
}

// Run recreates the stack's index and records the model it was built with.
func Run(ctx context.Context, w io.Writer, s *stack.Stack, configDir string) error {
	schema := s.Schema

	err := cliui.Step(w, fmt.Sprintf("Resetting index %s", schema.Name), func() error {
		return s.Manager.EnsureIndex(ctx, schema)
	})
	if err != nil {
		return err
	}

	ddm := dotdir.NewManager()
	err = ddm.SaveIndexRecord(configDir, &dotdir.IndexRecord{
		Name:       schema.Name,
		Model:      s.Embedder.Model(),
		Dimensions: schema.Dimensions,
		Metric:     string(schema.Metric),
		Store:      s.Config.Store.Provider,
		ResetAt:    time.Now().UTC(),
	})
	if err != nil {
		// The index exists; only the local bookkeeping failed.
		s.Logger.Warn("could not save index record", "index", schema.Name, "error", err)
	}

	fmt.Fprintf(w, "\n  %s %s  %s\n\n",
		cliui.KeyStyle.Render("Index:"),
		cliui.ValueStyle.Render(schema.Name),
		cliui.DimStyle.Render(fmt.Sprintf("%d dims, %s, model %s", schema.Dimensions, schema.Metric, s.Embedder.Model())),
	)
	return nil
}
