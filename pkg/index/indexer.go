package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/simsearch/pkg/embeddings"
	"github.com/papercomputeco/simsearch/pkg/eventstream"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

// Indexer embeds documents and bulk-loads them into an index.
type Indexer struct {
	manager   *Manager
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithPublisher emits a BatchIndexedEvent after every batch.
func WithPublisher(p eventstream.Publisher) Option {
	return func(i *Indexer) {
		i.publisher = p
	}
}

// NewIndexer creates an indexer writing through the manager's driver. The
// embedder is shared with the search engine and only read from.
func NewIndexer(manager *Manager, embedder embeddings.Embedder, logger *slog.Logger, opts ...Option) *Indexer {
	i := &Indexer{
		manager:  manager,
		embedder: embedder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IndexBatch stores documents in the named index.
//
// Documents without an embedding are embedded together in a single call to
// the embedding model, then the whole batch is written with one bulk upsert
// keyed by ID, replacing documents which already exist. Documents failing
// validation or rejected by the store are reported in the returned Report
// and never abort the batch. An error is returned only when the batch as a
// whole cannot proceed: the model or the store is unavailable, or the model
// output does not fit the index schema.
func (i *Indexer) IndexBatch(ctx context.Context, name string, docs []vector.Document) (*Report, error) {
	start := time.Now()

	schema, err := i.manager.Schema(ctx, name)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Attempted: len(docs),
		Failed:    []Failure{},
	}
	outcome := make([]error, len(docs))
	work := make([]vector.Document, len(docs))

	var (
		toEmbed []int
		texts   []string
	)
	for n, doc := range docs {
		doc = doc.Clone()
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		work[n] = doc

		if err := validate(schema, doc); err != nil {
			outcome[n] = err
			continue
		}
		if doc.Embedding == nil {
			toEmbed = append(toEmbed, n)
			texts = append(texts, doc.EmbedText(schema.TextFields))
		}
	}

	if len(texts) > 0 {
		if d := i.embedder.Dimensions(); d != schema.Dimensions {
			return nil, fmt.Errorf("%w: model %s produces %d-dimensional vectors, index %q expects %d",
				vector.ErrSchemaConflict, i.embedder.Model(), d, name, schema.Dimensions)
		}

		vectors, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, modelError(err)
		}
		if err := embeddings.CheckBatch(texts, vectors, schema.Dimensions); err != nil {
			return nil, err
		}
		for j, n := range toEmbed {
			work[n].Embedding = vectors[j]
		}
	}

	var (
		batch []vector.Document
		slots []int
	)
	for n := range work {
		if outcome[n] == nil {
			batch = append(batch, work[n])
			slots = append(slots, n)
		}
	}

	if len(batch) > 0 {
		results, err := i.manager.driver.BulkUpsert(ctx, name, batch)
		if err != nil {
			return nil, vector.Unavailable(err, "bulk upsert")
		}
		if len(results) != len(batch) {
			return nil, fmt.Errorf("%w: bulk upsert returned %d results for %d documents",
				vector.ErrStoreUnavailable, len(results), len(batch))
		}
		for j, r := range results {
			outcome[slots[j]] = r.Err
		}
	}

	for n, err := range outcome {
		if err != nil {
			report.Failed = append(report.Failed, Failure{ID: work[n].ID, Reason: err.Error()})
			continue
		}
		report.Succeeded++
		report.IDs = append(report.IDs, work[n].ID)
	}

	i.logger.Info("indexed batch",
		"index", name,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"embedded", len(texts),
	)
	for _, f := range report.Failed {
		i.logger.Debug("document rejected", "index", name, "id", f.ID, "reason", f.Reason)
	}

	i.publish(ctx, name, report, time.Since(start))
	return report, nil
}

// Delete removes documents from the index by ID.
func (i *Indexer) Delete(ctx context.Context, name string, ids ...string) error {
	if err := i.manager.driver.Delete(ctx, name, ids); err != nil {
		return vector.Unavailable(err, "deleting documents")
	}
	i.logger.Debug("deleted documents", "index", name, "count", len(ids))
	return nil
}

func (i *Indexer) publish(ctx context.Context, name string, report *Report, elapsed time.Duration) {
	if i.publisher == nil {
		return
	}

	event := eventstream.NewBatchIndexedEvent(name)
	event.Model = i.embedder.Model()
	event.Attempted = report.Attempted
	event.Succeeded = report.Succeeded
	event.DurationMs = elapsed.Milliseconds()
	for _, f := range report.Failed {
		event.Failed = append(event.Failed, eventstream.DocumentFailure{ID: f.ID, Reason: f.Reason})
	}

	if err := i.publisher.PublishBatchIndexed(ctx, event); err != nil {
		i.logger.Warn("failed to publish index event",
			"index", name,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

// validate checks a document against the index schema before it is
// embedded or sent to the store.
func validate(schema vector.Schema, doc vector.Document) error {
	for field := range doc.Fields {
		if !schema.HasField(field) {
			return vector.Rejected("unknown text field %q", field)
		}
	}
	if err := vector.ValidateMetadata(doc.Metadata); err != nil {
		return vector.Rejected("%v", err)
	}

	if doc.Embedding != nil {
		if len(doc.Embedding) != schema.Dimensions {
			return vector.Rejected("embedding has %d dimensions, index %q expects %d",
				len(doc.Embedding), schema.Name, schema.Dimensions)
		}
		if !vector.Finite(doc.Embedding) {
			return vector.Rejected("embedding contains non-finite values")
		}
		return nil
	}

	if doc.EmbedText(schema.TextFields) == "" {
		return vector.Rejected("document has no text to embed")
	}
	return nil
}
