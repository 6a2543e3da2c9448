// Package memory provides an in-memory vector.Driver. It is the reference
// implementation used by tests and by single-process deployments that rebuild
// their index from source data on start.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// index is a single named index and its documents keyed by ID.
type index struct {
	schema vector.Schema
	docs   map[string]vector.Document
}

// Driver implements vector.Driver using in-memory maps.
type Driver struct {
	// mu guards indexes and the failure hooks
	mu sync.RWMutex

	indexes map[string]*index

	// reject maps document IDs to a reason the driver rejects them with.
	reject map[string]string

	// failNext causes the next operation to fail as if the store were
	// unreachable.
	failNext error

	logger *slog.Logger
}

// NewDriver creates a new in-memory vector driver.
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		indexes: make(map[string]*index),
		reject:  make(map[string]string),
		logger:  logger,
	}
}

// Reject makes BulkUpsert reject the document with the given ID.
func (d *Driver) Reject(id, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reject[id] = reason
}

// FailNext makes the next driver operation fail with ErrStoreUnavailable.
func (d *Driver) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = errors.New("connection refused")
	}
	d.failNext = err
}

// takeFailure returns and clears the injected failure. Callers hold mu.
func (d *Driver) takeFailure(op string) error {
	if d.failNext == nil {
		return nil
	}
	err := d.failNext
	d.failNext = nil
	return vector.Unavailable(err, op)
}

// CreateIndex creates an empty index.
func (d *Driver) CreateIndex(_ context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("creating index"); err != nil {
		return err
	}
	if _, ok := d.indexes[schema.Name]; ok {
		return fmt.Errorf("%w: index %q already exists", vector.ErrSchemaConflict, schema.Name)
	}

	schema.TextFields = slices.Clone(schema.TextFields)
	d.indexes[schema.Name] = &index{
		schema: schema,
		docs:   make(map[string]vector.Document),
	}

	d.logger.Debug("created in-memory index",
		"index", schema.Name,
		"dimensions", schema.Dimensions,
		"metric", schema.Metric,
	)
	return nil
}

// DeleteIndex drops an index and all of its documents.
func (d *Driver) DeleteIndex(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("deleting index"); err != nil {
		return err
	}
	delete(d.indexes, name)
	return nil
}

// IndexExists reports whether the index exists.
func (d *Driver) IndexExists(_ context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("checking index"); err != nil {
		return false, err
	}
	_, ok := d.indexes[name]
	return ok, nil
}

// Describe returns the schema of an index.
func (d *Driver) Describe(_ context.Context, name string) (vector.Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("describing index"); err != nil {
		return vector.Schema{}, err
	}
	idx, ok := d.indexes[name]
	if !ok {
		return vector.Schema{}, vector.IndexNotFound(name)
	}
	s := idx.schema
	s.TextFields = slices.Clone(s.TextFields)
	return s, nil
}

// BulkUpsert inserts or replaces documents by ID.
func (d *Driver) BulkUpsert(_ context.Context, name string, docs []vector.Document) ([]vector.ItemResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("bulk upsert"); err != nil {
		return nil, err
	}
	idx, ok := d.indexes[name]
	if !ok {
		return nil, vector.IndexNotFound(name)
	}

	results := make([]vector.ItemResult, len(docs))
	for i, doc := range docs {
		results[i].ID = doc.ID

		if reason, ok := d.reject[doc.ID]; ok {
			results[i].Err = vector.Rejected("%s", reason)
			continue
		}
		if doc.ID == "" {
			results[i].Err = vector.Rejected("missing document id")
			continue
		}
		if len(doc.Embedding) != idx.schema.Dimensions {
			results[i].Err = vector.Rejected("embedding has %d dimensions, index %q expects %d",
				len(doc.Embedding), name, idx.schema.Dimensions)
			continue
		}

		idx.docs[doc.ID] = doc.Clone()
	}

	d.logger.Debug("upserted documents into in-memory index",
		"index", name,
		"count", len(docs),
	)
	return results, nil
}

// Query scores the stored documents. Both strategies evaluate every vector,
// an exact answer being a valid approximate one.
func (d *Driver) Query(_ context.Context, name string, q vector.Query) ([]vector.Hit, error) {
	d.mu.Lock()
	if err := d.takeFailure("query"); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	idx, ok := d.indexes[name]
	if !ok {
		d.mu.Unlock()
		return nil, vector.IndexNotFound(name)
	}
	docs := make([]vector.Document, 0, len(idx.docs))
	for _, doc := range idx.docs {
		docs = append(docs, doc.Clone())
	}
	metric := idx.schema.Metric
	d.mu.Unlock()

	if q.Strategy == vector.StrategyExhaustive && q.Metric != "" {
		metric = q.Metric
	}

	k := q.K
	if q.Strategy == vector.StrategyANN && q.NumCandidates > 0 {
		k = min(q.K, q.NumCandidates)
	}

	hits, err := vector.ScoreAll(metric, q.Vector, docs, k)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("queried in-memory index",
		"index", name,
		"strategy", q.Strategy,
		"results", len(hits),
	)
	return hits, nil
}

// Count returns the number of documents in the index.
func (d *Driver) Count(_ context.Context, name string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("count"); err != nil {
		return 0, err
	}
	idx, ok := d.indexes[name]
	if !ok {
		return 0, vector.IndexNotFound(name)
	}
	return len(idx.docs), nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(_ context.Context, name string, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.takeFailure("delete"); err != nil {
		return err
	}
	idx, ok := d.indexes[name]
	if !ok {
		return vector.IndexNotFound(name)
	}
	for _, id := range ids {
		delete(idx.docs, id)
	}
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
