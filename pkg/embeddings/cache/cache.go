// Package cache wraps an Embedder with a persistent bbolt backed cache keyed
// by model identity and text hash.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/papercomputeco/simsearch/pkg/embeddings"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

// Embedder is a caching decorator around another Embedder.
type Embedder struct {
	inner  embeddings.Embedder
	db     *bbolt.DB
	bucket []byte
	logger *slog.Logger
}

// New opens (or creates) the cache database at path. Vectors are cached in a
// bucket named after the inner embedder's Model(), so switching models never
// serves stale vectors.
func New(path string, inner embeddings.Embedder, logger *slog.Logger) (*Embedder, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	bucket := []byte(inner.Model())
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Embedder{
		inner:  inner,
		db:     db,
		bucket: bucket,
		logger: logger,
	}, nil
}

func key(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return sum[:]
}

// Embed returns cached vectors where present and embeds the remainder with a
// single call to the wrapped embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int

	err := e.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(e.bucket)
		for i, t := range texts {
			raw := b.Get(key(t))
			if raw == nil {
				missIdx = append(missIdx, i)
				continue
			}
			v, err := vector.DecodeFloat32(raw)
			if err != nil || len(v) != e.inner.Dimensions() {
				missIdx = append(missIdx, i)
				continue
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("embedding cache read failed", "error", err)
		missIdx = missIdx[:0]
		for i := range texts {
			missIdx = append(missIdx, i)
		}
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	misses := make([]string, len(missIdx))
	for j, i := range missIdx {
		misses[j] = texts[i]
	}

	vectors, err := e.inner.Embed(ctx, misses)
	if err != nil {
		return nil, err
	}
	if err := embeddings.CheckBatch(misses, vectors, e.inner.Dimensions()); err != nil {
		return nil, err
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
	}

	err = e.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(e.bucket)
		for j, t := range misses {
			if err := b.Put(key(t), vector.EncodeFloat32(vectors[j])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}

	e.logger.Debug("embedded texts",
		"model", e.inner.Model(),
		"cached", len(texts)-len(missIdx),
		"embedded", len(missIdx),
	)
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Model returns the wrapped embedder's model identity.
func (e *Embedder) Model() string {
	return e.inner.Model()
}

// Close closes the cache database and the wrapped embedder.
func (e *Embedder) Close() error {
	dbErr := e.db.Close()
	if err := e.inner.Close(); err != nil {
		return err
	}
	return dbErr
}

var _ embeddings.Embedder = (*Embedder)(nil)
