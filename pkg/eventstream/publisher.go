package eventstream

import "context"

// Publisher publishes index events to an event stream backend.
type Publisher interface {
	PublishBatchIndexed(ctx context.Context, event *BatchIndexedEvent) error
	Close() error
}
