// Package indexcmder provides the index command which loads documents from
// CSV and text files, embeds them and bulk loads them into an index.
package indexcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	resetcmder "github.com/papercomputeco/simsearch/cmd/simsearch/reset"
	"github.com/papercomputeco/simsearch/cmd/simsearch/stack"
	"github.com/papercomputeco/simsearch/pkg/cliui"
	"github.com/papercomputeco/simsearch/pkg/config"
	"github.com/papercomputeco/simsearch/pkg/dotdir"
	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/index/worker"
	"github.com/papercomputeco/simsearch/pkg/loader"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

const indexLongDesc string = `Embed documents and bulk load them into an index.

CSV files yield one document per row: the id column becomes the document id,
the index's text fields are embedded and every other column is stored as
metadata. Any other file becomes one document with a title (the file name)
and content (the file body). Directories are walked; --include and --exclude
filter them with doublestar patterns. Paths that do not exist are expanded
as glob patterns.

Documents are sent in batches of --batch-size: one embedding call and one
bulk upsert per batch, with up to --workers batches in flight. Documents the store rejects are reported and do not
stop the run. Re-indexing an id overwrites it.

The index must exist; pass --reset to drop and recreate it first.

Examples:
  simsearch index articles.csv
  simsearch index --reset docs/ --include "**/*.md"
  simsearch index "data/*.csv" --batch-size 500`

const indexShortDesc string = "Embed and load documents into an index"

// DefaultBatchSize is the number of documents embedded and upserted together.
const DefaultBatchSize = 100

// maxFailuresShown caps the per-document failures printed after a run.
const maxFailuresShown = 10

var indexFlags = []string{
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

// Options control a single index run.
type Options struct {
	Paths     []string
	BatchSize int
	IDColumn  string
	Includes  []string
	Excludes  []string
	Reset     bool

	// Workers is the number of batches in flight at once.
	Workers int
}

type indexCommander struct {
	opts Options

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

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configDir, err := stack.LoadConfig(cmd, indexFlags...)
			if err != nil {
				return err
			}
			s, err := stack.New(cmd.Context(), cfg, configDir, stack.NewLogger(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			cmder.opts.Paths = args
			_, err = Run(cmd.Context(), cmd.OutOrStdout(), s, configDir, cmder.opts)
			return err
		},
	}

	cmd.Flags().IntVarP(&cmder.opts.BatchSize, "batch-size", "b", DefaultBatchSize, "Documents per embedding call and bulk upsert")
	cmd.Flags().StringVar(&cmder.opts.IDColumn, "id-column", "id", "CSV column holding document ids")
	cmd.Flags().StringSliceVar(&cmder.opts.Includes, "include", nil, "Doublestar patterns of files to load from directories")
	cmd.Flags().StringSliceVar(&cmder.opts.Excludes, "exclude", nil, "Doublestar patterns of files to skip in directories")
	cmd.Flags().BoolVar(&cmder.opts.Reset, "reset", false, "Drop and recreate the index before loading")
	cmd.Flags().IntVarP(&cmder.opts.Workers, "workers", "w", 1, "Number of batches embedded and upserted concurrently")

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

// Run loads, embeds and upserts the documents at opts.Paths and returns the
// combined report.
func Run(ctx context.Context, w io.Writer, s *stack.Stack, configDir string, opts Options) (*index.Report, error) {
	name := s.Schema.Name

	if opts.Reset {
		if err := resetcmder.Run(ctx, w, s, configDir); err != nil {
			return nil, err
		}
	} else if err := checkIndex(ctx, s, configDir); err != nil {
		return nil, err
	}

	schema, err := s.Manager.Schema(ctx, name)
	if err != nil {
		return nil, err
	}

	l := &loader.Loader{
		TextFields: schema.TextFields,
		IDColumn:   opts.IDColumn,
		Includes:   opts.Includes,
		Excludes:   opts.Excludes,
	}
	docs, err := l.Load(opts.Paths...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("No documents found."))
		return &index.Report{Failed: []index.Failure{}}, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	total, err := runBatches(ctx, s, name, docs, batchSize, opts.Workers, func(n int) {
		_ = bar.Add(n)
	})
	if err != nil {
		_ = bar.Exit()
		fmt.Fprintln(w)
		return total, err
	}

	count, err := s.Manager.Count(ctx, name)
	if err != nil {
		return total, err
	}

	printSummary(w, name, total, count)
	return total, nil
}

// runBatches splits docs into batches, runs them on a worker pool and merges
// the reports in input order. The first failed batch, by position, is
// returned after every batch has finished; its documents still count as
// attempted.
func runBatches(ctx context.Context, s *stack.Stack, name string, docs []vector.Document, batchSize, workers int, progress func(int)) (*index.Report, error) {
	batches := splitBatches(docs, batchSize)

	wp, err := worker.NewPool(ctx, &worker.Config{
		Indexer:    s.Indexer,
		NumWorkers: uint(max(workers, 1)),
		QueueSize:  uint(len(batches)),
		Logger:     s.Logger,
	})
	if err != nil {
		return nil, err
	}

	for seq, batch := range batches {
		wp.Enqueue(worker.Job{Seq: seq, Index: name, Docs: batch})
	}
	go wp.Close()

	results := make([]worker.Result, len(batches))
	for r := range wp.Results() {
		results[r.Job.Seq] = r
		progress(len(r.Job.Docs))
	}

	total := &index.Report{Failed: []index.Failure{}}
	var firstErr error
	for seq, r := range results {
		if r.Err != nil {
			total.Attempted += len(r.Job.Docs)
			if firstErr == nil {
				firstErr = fmt.Errorf("indexing batch %d of %d (%d documents): %w", seq+1, len(results), len(r.Job.Docs), r.Err)
			}
			continue
		}
		total.Attempted += r.Report.Attempted
		total.Succeeded += r.Report.Succeeded
		total.Failed = append(total.Failed, r.Report.Failed...)
	}
	return total, firstErr
}

// splitBatches cuts docs into batches of up to size documents in input
// order. A repeated ID joins the batch of its first occurrence, after it, so
// concurrent batches never race on one ID and the last occurrence wins.
// Such a batch can grow past size.
func splitBatches(docs []vector.Document, size int) [][]vector.Document {
	var (
		batches [][]vector.Document
		open    int
		home    = make(map[string]int, len(docs))
	)
	for _, doc := range docs {
		if doc.ID != "" {
			if b, ok := home[doc.ID]; ok {
				batches[b] = append(batches[b], doc)
				continue
			}
		}
		if len(batches) == 0 || open == size {
			batches = append(batches, nil)
			open = 0
		}
		b := len(batches) - 1
		batches[b] = append(batches[b], doc)
		open++
		if doc.ID != "" {
			home[doc.ID] = b
		}
	}
	return batches
}

// checkIndex fails early when the index is missing or was reset with a
// different embedding model.
func checkIndex(ctx context.Context, s *stack.Stack, configDir string) error {
	name := s.Schema.Name

	exists, err := s.Manager.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: run \"simsearch reset\" or pass --reset", vector.IndexNotFound(name))
	}

	rec, err := dotdir.NewManager().LoadIndexRecord(configDir, name)
	if err != nil {
		s.Logger.Warn("could not read index record", "index", name, "error", err)
	}
	if rec != nil && rec.Model != s.Embedder.Model() {
		return fmt.Errorf("%w: index %q was built with model %s, configured model is %s; run \"simsearch reset\"",
			vector.ErrSchemaConflict, name, rec.Model, s.Embedder.Model())
	}

	return s.Manager.Declare(ctx, s.Schema)
}

func printSummary(w io.Writer, name string, r *index.Report, count int) {
	fmt.Fprintf(w, "\n  %s Indexed %d of %d documents into %s\n",
		cliui.SuccessMark, r.Succeeded, r.Attempted, cliui.ValueStyle.Render(name))

	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "  %s %d documents failed\n", cliui.FailMark, len(r.Failed))
		for i, f := range r.Failed {
			if i == maxFailuresShown {
				fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(fmt.Sprintf("... and %d more", len(r.Failed)-maxFailuresShown)))
				break
			}
			fmt.Fprintf(w, "    %s %s\n", cliui.KeyStyle.Render(f.ID), cliui.DimStyle.Render(f.Reason))
		}
	}

	fmt.Fprintf(w, "  %s %d\n\n", cliui.KeyStyle.Render("Documents in index:"), count)
}
