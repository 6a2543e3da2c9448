package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// UnreachableDriver is a test vector driver whose store cannot be reached:
// every operation fails with ErrStoreUnavailable.
type UnreachableDriver struct{}

func NewUnreachableDriver() *UnreachableDriver {
	return &UnreachableDriver{}
}

func (UnreachableDriver) err() error {
	return fmt.Errorf("%w: connection refused", vector.ErrStoreUnavailable)
}

func (d UnreachableDriver) CreateIndex(context.Context, vector.Schema) error { return d.err() }

func (d UnreachableDriver) DeleteIndex(context.Context, string) error { return d.err() }

func (d UnreachableDriver) IndexExists(context.Context, string) (bool, error) { return false, d.err() }

func (d UnreachableDriver) Describe(context.Context, string) (vector.Schema, error) {
	return vector.Schema{}, d.err()
}

func (d UnreachableDriver) BulkUpsert(context.Context, string, []vector.Document) ([]vector.ItemResult, error) {
	return nil, d.err()
}

func (d UnreachableDriver) Query(context.Context, string, vector.Query) ([]vector.Hit, error) {
	return nil, d.err()
}

func (d UnreachableDriver) Count(context.Context, string) (int, error) { return 0, d.err() }

func (d UnreachableDriver) Delete(context.Context, string, []string) error { return d.err() }

func (UnreachableDriver) Close() error { return nil }

var _ vector.Driver = UnreachableDriver{}
