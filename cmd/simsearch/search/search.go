// Package searchcmder provides the search command for similarity search over
// an index.
package searchcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/simsearch/cmd/simsearch/stack"
	"github.com/papercomputeco/simsearch/pkg/cliui"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/search"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

const searchLongDesc string = `Search an index for the documents most similar to a query.

The query is embedded with the configured model and compared against the
stored vectors. Two strategies are available:

  exhaustive  Score every document and return the exact top results.
              --metric scores with another metric than the index's.
  ann         Use the store's approximate nearest-neighbor index with a
              candidate pool of --num-candidates (default 1.5x --top,
              at least 10). Larger pools trade latency for recall.

Results are ordered by descending score; equal scores are ordered by id.

Use --quiet to output only document ids, one per line.

Examples:
  simsearch search "effects of climate on farming"
  simsearch search "climate change" --top 5 --strategy ann --num-candidates 50
  simsearch search "climate change" --metric dot_product
  simsearch search "climate change" --index articles --quiet`

const searchShortDesc string = "Search an index"

var searchFlags = []string{
	config.FlagStoreProvider,
	config.FlagStoreTarget,
	config.FlagSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagIndex,
	config.FlagStrategy,
	config.FlagTopK,
	config.FlagNumCandidates,
}

// Options control a single search run.
type Options struct {
	Query         string
	TopK          int
	Strategy      string
	NumCandidates int
	Metric        string
	Quiet         bool
}

type searchCommander struct {
	metric string
	quiet  bool

	storeProvider  string
	storeTarget    string
	sqlitePath     string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	indexName      string
	strategy       string
	topK           uint
	numCandidates  uint
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configDir, err := stack.LoadConfig(cmd, searchFlags...)
			if err != nil {
				return err
			}
			s, err := stack.New(cmd.Context(), cfg, configDir, stack.NewLogger(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			return Run(cmd.Context(), cmd.OutOrStdout(), s, Options{
				Query:         args[0],
				TopK:          int(cfg.Search.TopK),
				Strategy:      cfg.Search.Strategy,
				NumCandidates: int(cfg.Search.NumCandidates),
				Metric:        cmder.metric,
				Quiet:         cmder.quiet,
			})
		},
	}

	cmd.Flags().StringVar(&cmder.metric, "metric", "", "Score exhaustive searches with this metric instead of the index's (cosine, dot_product, l2_norm)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only document ids, one per line")

	config.AddStringFlag(cmd, config.Flags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreTarget, &cmder.storeTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagIndex, &cmder.indexName)
	config.AddStringFlag(cmd, config.Flags, config.FlagStrategy, &cmder.strategy)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddUintFlag(cmd, config.Flags, config.FlagNumCandidates, &cmder.numCandidates)

	return cmd
}

// Run searches the stack's index and prints the ranked results.
func Run(ctx context.Context, w io.Writer, s *stack.Stack, opts Options) error {
	name := s.Schema.Name
	results, err := s.Engine.Search(ctx, name, opts.Query, opts.TopK, search.Options{
		Strategy:      vector.Strategy(opts.Strategy),
		NumCandidates: opts.NumCandidates,
		Metric:        vector.Metric(opts.Metric),
	})
	if err != nil {
		return err
	}

	if opts.Quiet {
		for _, r := range results {
			fmt.Fprintln(w, r.ID)
		}
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "\n%s %s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%q", opts.Query)),
		cliui.DimStyle.Render(fmt.Sprintf("(%s)", name)),
	)

	for i, r := range results {
		cliui.RenderResult(w, i+1, r, s.Schema.TextFields)
	}

	return nil
}
