// Package search answers similarity queries over a vector index.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/papercomputeco/simsearch/pkg/embeddings"
	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

const (
	// MinCandidates is the smallest default ANN candidate pool.
	MinCandidates = 10

	// MaxCandidates caps the default ANN candidate pool.
	MaxCandidates = 10000
)

// Options control how a query is executed.
type Options struct {
	// Strategy selects exact or approximate retrieval. Empty means
	// vector.StrategyExhaustive.
	Strategy vector.Strategy

	// NumCandidates is the ANN candidate pool size. Zero selects
	// DefaultNumCandidates(k). Ignored for exhaustive queries.
	NumCandidates int

	// Metric overrides the index metric for exhaustive queries. Empty means
	// the index metric.
	Metric vector.Metric
}

// Engine embeds query text and retrieves the most similar documents.
type Engine struct {
	manager  *index.Manager
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewEngine creates a search engine. The embedder must be the model the
// index was loaded with.
func NewEngine(manager *index.Manager, embedder embeddings.Embedder, logger *slog.Logger) *Engine {
	return &Engine{
		manager:  manager,
		embedder: embedder,
		logger:   logger,
	}
}

// DefaultNumCandidates returns the ANN candidate pool used when none is
// given: one and a half times k, at least MinCandidates and at most
// MaxCandidates unless k itself is larger.
func DefaultNumCandidates(k int) int {
	n := max(MinCandidates, int(math.Ceil(1.5*float64(k))))
	return min(n, max(k, MaxCandidates))
}

// Search returns up to k documents of the named index most similar to
// query, ordered by descending score with ties broken by ascending ID.
// An empty index yields an empty result, never an error.
func (e *Engine) Search(ctx context.Context, name, query string, k int, opts Options) ([]vector.SearchResult, error) {
	q, err := e.plan(k, opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query text", vector.ErrInvalidQuery)
	}

	schema, err := e.manager.Schema(ctx, name)
	if err != nil {
		return nil, err
	}
	if q.Strategy == vector.StrategyANN && q.Metric != "" && q.Metric != schema.Metric {
		return nil, fmt.Errorf("%w: approximate search uses the index metric %s, got %s",
			vector.ErrInvalidQuery, schema.Metric, q.Metric)
	}
	if d := e.embedder.Dimensions(); d != schema.Dimensions {
		return nil, fmt.Errorf("%w: model %s produces %d-dimensional vectors, index %q expects %d",
			vector.ErrSchemaConflict, e.embedder.Model(), d, name, schema.Dimensions)
	}

	start := time.Now()
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		if errors.Is(err, vector.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", vector.ErrModelUnavailable, err)
	}
	if err := embeddings.CheckBatch([]string{query}, vectors, schema.Dimensions); err != nil {
		return nil, err
	}
	q.Vector = vectors[0]

	// The ANN pool never uses an override.
	if q.Strategy == vector.StrategyANN {
		q.Metric = ""
	}

	hits, err := e.manager.Driver().Query(ctx, name, q)
	if err != nil {
		return nil, vector.Unavailable(err, "query")
	}
	hits = vector.Rank(hits, k)

	e.logger.Debug("search completed",
		"index", name,
		"strategy", q.Strategy,
		"k", k,
		"num_candidates", q.NumCandidates,
		"results", len(hits),
		"duration", time.Since(start),
	)
	return vector.ToResults(hits), nil
}

// plan validates the query parameters and fills in defaults.
func (e *Engine) plan(k int, opts Options) (vector.Query, error) {
	if k < 1 {
		return vector.Query{}, fmt.Errorf("%w: k must be at least 1, got %d", vector.ErrInvalidQuery, k)
	}

	strategy := vector.StrategyExhaustive
	if opts.Strategy != "" {
		s, err := vector.ParseStrategy(string(opts.Strategy))
		if err != nil {
			return vector.Query{}, err
		}
		strategy = s
	}

	var metric vector.Metric
	if opts.Metric != "" {
		m, err := vector.ParseMetric(string(opts.Metric))
		if err != nil {
			return vector.Query{}, fmt.Errorf("%w: unknown similarity metric %q", vector.ErrInvalidQuery, opts.Metric)
		}
		metric = m
	}

	q := vector.Query{
		Strategy: strategy,
		K:        k,
		Metric:   metric,
	}
	if strategy == vector.StrategyANN {
		switch {
		case opts.NumCandidates == 0:
			q.NumCandidates = DefaultNumCandidates(k)
		case opts.NumCandidates < k:
			return vector.Query{}, fmt.Errorf("%w: num_candidates %d is smaller than k %d",
				vector.ErrInvalidQuery, opts.NumCandidates, k)
		default:
			q.NumCandidates = opts.NumCandidates
		}
	}
	return q, nil
}
