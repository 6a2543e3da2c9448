// Package index prepares vector indexes and bulk-loads documents into them.
//
// A Manager owns the lifecycle of index schemas: creating, resetting and
// describing them. An Indexer embeds documents with the shared embedding
// model and upserts them through the store driver, reporting per-document
// failures without aborting the batch.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// Manager handles index schema lifecycle against a vector.Driver. It
// remembers the schemas declared through it for the lifetime of the process
// and reports a SchemaConflict when the store later disagrees with one.
type Manager struct {
	driver vector.Driver
	logger *slog.Logger

	mu       sync.Mutex
	declared map[string]vector.Schema
}

// NewManager creates a schema manager over the given driver.
func NewManager(driver vector.Driver, logger *slog.Logger) *Manager {
	return &Manager{
		driver:   driver,
		logger:   logger,
		declared: make(map[string]vector.Schema),
	}
}

// Driver returns the store driver the manager operates on.
func (m *Manager) Driver() vector.Driver {
	return m.driver
}

// EnsureIndex makes the index exist with exactly the given schema. An
// existing index of the same name is destroyed first, losing all of its
// documents; see Reset.
func (m *Manager) EnsureIndex(ctx context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	exists, err := m.driver.IndexExists(ctx, schema.Name)
	if err != nil {
		return vector.Unavailable(err, "checking index")
	}
	if exists {
		m.logger.Warn("recreating existing index, all documents will be lost",
			"index", schema.Name,
		)
	}

	return m.Reset(ctx, schema)
}

// Reset drops the index if present and recreates it empty with the given
// schema. It is idempotent: resetting twice leaves the same empty index.
func (m *Manager) Reset(ctx context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	schema.TextFields = slices.Clone(schema.TextFields)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.driver.DeleteIndex(ctx, schema.Name); err != nil {
		return vector.Unavailable(err, "deleting index")
	}
	if err := m.driver.CreateIndex(ctx, schema); err != nil {
		return vector.Unavailable(err, "creating index")
	}
	m.declared[schema.Name] = schema

	m.logger.Info("index reset",
		"index", schema.Name,
		"dimensions", schema.Dimensions,
		"metric", schema.Metric,
		"text_fields", schema.TextFields,
	)
	return nil
}

// Declare records the schema an existing index is expected to have without
// touching its documents. It fails with SchemaConflict when the store holds
// the index under a different vector space, or when a different vector space
// was already declared for the name in this process.
func (m *Manager) Declare(ctx context.Context, schema vector.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	stored, err := m.driver.Describe(ctx, schema.Name)
	if err != nil {
		return vector.Unavailable(err, "describing index")
	}
	if !stored.Compatible(schema) {
		return fmt.Errorf("%w: index %q stores %d-dimensional %s vectors, declared %d-dimensional %s",
			vector.ErrSchemaConflict, schema.Name,
			stored.Dimensions, stored.Metric, schema.Dimensions, schema.Metric)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.declared[schema.Name]; ok && !prev.Compatible(schema) {
		return fmt.Errorf("%w: index %q already declared with %d dimensions and %s metric",
			vector.ErrSchemaConflict, schema.Name, prev.Dimensions, prev.Metric)
	}
	if len(schema.TextFields) == 0 {
		schema.TextFields = stored.TextFields
	}
	m.declared[schema.Name] = schema
	return nil
}

// IndexExists reports whether the index exists in the store.
func (m *Manager) IndexExists(ctx context.Context, name string) (bool, error) {
	exists, err := m.driver.IndexExists(ctx, name)
	if err != nil {
		return false, vector.Unavailable(err, "checking index")
	}
	return exists, nil
}

// Schema returns the schema of an index. The store is always consulted; a
// declared schema it no longer agrees with is a SchemaConflict.
func (m *Manager) Schema(ctx context.Context, name string) (vector.Schema, error) {
	stored, err := m.driver.Describe(ctx, name)
	if err != nil {
		return vector.Schema{}, vector.Unavailable(err, "describing index")
	}

	m.mu.Lock()
	declared, ok := m.declared[name]
	m.mu.Unlock()

	if !ok {
		return stored, nil
	}
	if !declared.Compatible(stored) {
		return vector.Schema{}, fmt.Errorf("%w: index %q was declared with %d dimensions and %s metric, store has %d and %s",
			vector.ErrSchemaConflict, name,
			declared.Dimensions, declared.Metric, stored.Dimensions, stored.Metric)
	}
	return declared, nil
}

// Count returns the number of documents in the index.
func (m *Manager) Count(ctx context.Context, name string) (int, error) {
	n, err := m.driver.Count(ctx, name)
	if err != nil {
		return 0, vector.Unavailable(err, "counting documents")
	}
	return n, nil
}

// DeleteIndex drops the index and forgets its declared schema.
func (m *Manager) DeleteIndex(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.driver.DeleteIndex(ctx, name); err != nil {
		return vector.Unavailable(err, "deleting index")
	}
	delete(m.declared, name)

	m.logger.Info("index deleted", "index", name)
	return nil
}
