// Package api provides an HTTP API server for managing vector indexes and
// running similarity search over them.
package api

import (
	"github.com/papercomputeco/simsearch/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DefaultSchema fills in the dimensions, metric and text fields of an
	// index created without them.
	DefaultSchema vector.Schema

	// DefaultTopK is used when a search request has no k.
	DefaultTopK int

	// DefaultStrategy is used when a search request has no strategy.
	DefaultStrategy vector.Strategy

	// DisableMCP leaves the /mcp endpoint unmounted.
	DisableMCP bool
}
