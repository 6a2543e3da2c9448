// Package vector provides the vector document data model, the Driver
// interface implemented by every vector store, and the similarity math shared
// by the store implementations.
package vector

import (
	"context"
	"fmt"
)

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique identifier for the document within an index.
	// When empty on indexing, an identifier is generated.
	ID string `json:"id"`

	// Fields holds the human-readable text payload keyed by field name
	// (e.g. "title", "content").
	Fields map[string]string `json:"fields,omitempty"`

	// Metadata holds auxiliary scalar values which are returned with hits but
	// never embedded.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Embedding is the vector representation of the document content.
	// It is computed by the indexer when empty.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Strategy selects how a similarity query is executed.
type Strategy string

const (
	// StrategyExhaustive scores every stored vector and returns the exact top-k.
	StrategyExhaustive Strategy = "exhaustive"

	// StrategyANN delegates to the store's native approximate nearest-neighbor
	// index using a candidate pool of NumCandidates vectors.
	StrategyANN Strategy = "ann"
)

// ParseStrategy converts a user supplied string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyExhaustive, "exact", "script":
		return StrategyExhaustive, nil
	case StrategyANN, "knn":
		return StrategyANN, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidQuery, s)
	}
}

// Query is the store-level request for a similarity query.
type Query struct {
	// Strategy is the retrieval strategy.
	Strategy Strategy

	// Vector is the embedded query.
	Vector []float32

	// K is the maximum number of hits to return.
	K int

	// NumCandidates is the ANN candidate pool size. Ignored for exhaustive queries.
	NumCandidates int

	// Metric is the similarity function for exhaustive queries.
	Metric Metric
}

// Hit is a single ranked match returned by a Driver.
type Hit struct {
	ID       string
	Score    float64
	Fields   map[string]string
	Metadata map[string]any
}

// ItemResult is the per-document outcome of a bulk upsert.
type ItemResult struct {
	ID string

	// Err is nil when the document was stored. Otherwise it wraps
	// ErrDocumentRejected.
	Err error
}

// Source is the stored payload returned with a search result.
type Source struct {
	Fields   map[string]string `json:"fields,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// SearchResult is a ranked match at the search engine boundary.
type SearchResult struct {
	ID string `json:"id"`

	// Score represents the similarity score (higher = more similar).
	Score float64 `json:"score"`

	Source Source `json:"source"`
}

// Driver handles index lifecycle, storage and retrieval of vector documents.
type Driver interface {
	// CreateIndex creates an index with the given schema. It fails with
	// ErrSchemaConflict when the index already exists.
	CreateIndex(ctx context.Context, schema Schema) error

	// DeleteIndex drops an index and every document in it. Deleting an index
	// which does not exist is not an error.
	DeleteIndex(ctx context.Context, name string) error

	// IndexExists reports whether the named index exists.
	IndexExists(ctx context.Context, name string) (bool, error)

	// Describe returns the schema the index was created with.
	Describe(ctx context.Context, name string) (Schema, error)

	// BulkUpsert inserts or replaces documents by ID in a single operation.
	// Rejections of individual documents are reported per item; a returned
	// error means the whole operation failed.
	BulkUpsert(ctx context.Context, name string, docs []Document) ([]ItemResult, error)

	// Query returns hits for the request, best first.
	Query(ctx context.Context, name string, q Query) ([]Hit, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context, name string) (int, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, name string, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
