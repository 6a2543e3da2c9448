package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when the embedding model cannot be
	// loaded or invoked.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrSchemaConflict is returned for invalid schema parameters or an
	// inconsistent vector dimensionality.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrStoreUnavailable is returned when the vector store is unreachable or
	// rejects a whole operation.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDocumentRejected marks a per-document failure inside a bulk upsert.
	// It is reported in index reports and never aborts a batch.
	ErrDocumentRejected = errors.New("document rejected")

	// ErrInvalidQuery is returned for malformed search parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexNotFound is returned when an operation targets a missing index.
	// Drivers always join it with ErrStoreUnavailable, see IndexNotFound.
	ErrIndexNotFound = errors.New("index not found")
)

// IndexNotFound returns the error drivers report for a missing index.
func IndexNotFound(name string) error {
	return fmt.Errorf("%w: %w: %s", ErrStoreUnavailable, ErrIndexNotFound, name)
}

// Unavailable wraps err with ErrStoreUnavailable and a context message unless
// it already carries a store or schema error kind.
func Unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrSchemaConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, msg, err)
}

// Rejected returns a per-document rejection error.
func Rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDocumentRejected, fmt.Sprintf(format, args...))
}
