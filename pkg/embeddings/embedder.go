// Package embeddings defines the Embedder interface which turns text into
// fixed-dimensionality vectors.
//
// An Embedder is loaded once and shared by the indexer and the search
// engine. Implementations must be safe for concurrent use: model identity
// and dimensionality never change after construction.
package embeddings

import (
	"context"
	"fmt"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts texts into vector embeddings, one per input text and in
	// input order. Every vector has Dimensions() components. A batch call is
	// never less efficient than repeated single calls.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of the vectors produced by Embed. It is
	// known before the first Embed call.
	Dimensions() int

	// Model returns the identity of the loaded model.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// CheckBatch verifies that an embedding response matches the request shape.
// It is used by implementations backed by remote services.
func CheckBatch(texts []string, vectors [][]float32, dims int) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: requested %d embeddings, got %d", vector.ErrModelUnavailable, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: embedding %d has %d dimensions, model declares %d",
				vector.ErrModelUnavailable, i, len(v), dims)
		}
	}
	return nil
}
