// Package vectorutils is the vector store utility package
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/chroma"
	"github.com/papercomputeco/simsearch/pkg/vector/memory"
	"github.com/papercomputeco/simsearch/pkg/vector/pgvector"
	"github.com/papercomputeco/simsearch/pkg/vector/qdrant"
	"github.com/papercomputeco/simsearch/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is one of memory, sqlite, postgres, qdrant or chroma.
	ProviderType string

	// TargetURL is the store address: a PostgreSQL connection string, the
	// Qdrant gRPC address or the Chroma URL.
	TargetURL string

	// SQLitePath is the database file for the sqlite provider.
	SQLitePath string

	APIKey string

	Logger *slog.Logger
}

// NewVectorDriver constructs the configured store client.
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch o.ProviderType {
	case "memory":
		return memory.NewDriver(logger), nil
	case "sqlite", "":
		return sqlitevec.NewDriver(sqlitevec.Config{DBPath: o.SQLitePath}, logger)
	case "postgres", "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{ConnString: o.TargetURL}, logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{Addr: o.TargetURL, APIKey: o.APIKey}, logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:        o.TargetURL,
			MaxRetries: 5,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vector store provider: %s", vector.ErrStoreUnavailable, o.ProviderType)
	}
}
