package index

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// modelError ensures an embedding failure carries ErrModelUnavailable.
func modelError(err error) error {
	if errors.Is(err, vector.ErrModelUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", vector.ErrModelUnavailable, err)
}
