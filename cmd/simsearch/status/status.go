// Package statuscmder provides the status command for displaying the state of
// the configured index.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/simsearch/cmd/simsearch/stack"
	"github.com/papercomputeco/simsearch/pkg/cliui"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/dotdir"
)

const statusLongDesc string = `Show the state of the configured index.

Reports whether the index exists in the vector store, how many documents it
holds, the schema it was created with and the embedding model recorded by the
last "simsearch reset".

Examples:
  simsearch status
  simsearch status --index articles`

const statusShortDesc string = "Show index status"

var statusFlags = []string{
	config.FlagStoreProvider,
	config.FlagStoreTarget,
	config.FlagSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagIndex,
}

type statusCommander struct {
	storeProvider  string
	storeTarget    string
	sqlitePath     string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	indexName      string
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, configDir, err := stack.LoadConfig(cmd, statusFlags...)
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

	return cmd
}

// Run prints the status of the stack's index.
func Run(ctx context.Context, w io.Writer, s *stack.Stack, configDir string) error {
	name := s.Schema.Name

	exists, err := s.Manager.IndexExists(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("Index:     "), cliui.ValueStyle.Render(name))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Store:     "), s.Config.Store.Provider)

	if !exists {
		fmt.Fprintf(w, "\n  %s Index does not exist. Run \"simsearch reset\" to create it.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	schema, err := s.Manager.Schema(ctx, name)
	if err != nil {
		return err
	}
	count, err := s.Manager.Count(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Documents: "), strconv.Itoa(count))
	fmt.Fprintf(w, "  %s  %d\n", cliui.KeyStyle.Render("Dimensions:"), schema.Dimensions)
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Metric:    "), schema.Metric)
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Fields:    "), strings.Join(schema.TextFields, ", "))

	rec, err := dotdir.NewManager().LoadIndexRecord(configDir, name)
	if err != nil {
		return fmt.Errorf("loading index record: %w", err)
	}
	if rec != nil {
		fmt.Fprintf(w, "  %s  %s %s\n", cliui.KeyStyle.Render("Model:     "), rec.Model,
			cliui.DimStyle.Render("(reset "+rec.ResetAt.Local().Format("2006-01-02 15:04")+")"))
		if rec.Model != s.Embedder.Model() {
			fmt.Fprintf(w, "  %s configured model %s differs; run \"simsearch reset\" before indexing\n",
				cliui.FailMark, s.Embedder.Model())
		}
	}

	fmt.Fprintln(w)
	return nil
}
