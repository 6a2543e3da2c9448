// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/simsearch/pkg/embeddings"
	"github.com/papercomputeco/simsearch/pkg/embeddings/cache"
	"github.com/papercomputeco/simsearch/pkg/embeddings/hashing"
	"github.com/papercomputeco/simsearch/pkg/embeddings/ollama"
	"github.com/papercomputeco/simsearch/pkg/embeddings/openai"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int

	// CachePath, when set, wraps the embedder with a persistent bbolt cache.
	CachePath string

	Logger *slog.Logger
}

// NewEmbedder loads the configured embedding model. It is called once per
// process and the result shared by the indexer and the search engine.
func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case "ollama":
		e, err = ollama.NewEmbedder(ctx, ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "openai":
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    o.TargetURL,
			APIKey:     o.APIKey,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "hashing", "":
		dims := o.Dimensions
		if dims == 0 {
			dims = hashing.DefaultDimensions
		}
		e, err = hashing.NewEmbedder(dims)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", vector.ErrModelUnavailable, o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.CachePath == "" {
		return e, nil
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cached, err := cache.New(o.CachePath, e, logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	return cached, nil
}
