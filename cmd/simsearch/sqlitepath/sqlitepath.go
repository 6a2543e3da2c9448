// Package sqlitepath resolves the SQLite vector database used by the sqlite
// store provider.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/simsearch/pkg/dotdir"
)

// DefaultFile is the database file name inside a .simsearch/ directory.
const DefaultFile = "simsearch.sqlite"

// ResolveSQLitePath returns the database path. Order of precedence:
//  1. override (the --sqlite flag or store.sqlite_path)
//  2. SIMSEARCH_SQLITE
//  3. <.simsearch dir>/simsearch.sqlite, resolved through configDir
//  4. ./simsearch.sqlite
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("SIMSEARCH_SQLITE")); envPath != "" {
		return envPath, nil
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving sqlite path: %w", err)
	}
	if target != "" {
		return filepath.Join(target, DefaultFile), nil
	}

	return DefaultFile, nil
}
