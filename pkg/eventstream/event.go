// Package eventstream defines the events emitted after index writes and the
// publishers delivering them.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeBatchIndexed is emitted after a batch of documents is indexed.
	EventTypeBatchIndexed = "simsearch.batch.indexed"
)

// BatchIndexedEvent is a transport-neutral event payload for an indexed batch.
type BatchIndexedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Index         string            `json:"index"`
	Model         string            `json:"model,omitempty"`
	Attempted     int               `json:"attempted"`
	Succeeded     int               `json:"succeeded"`
	Failed        []DocumentFailure `json:"failed,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
}

// DocumentFailure identifies a document the store rejected.
type DocumentFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// NewBatchIndexedEvent creates an event with a fresh ID and timestamp.
func NewBatchIndexedEvent(index string) *BatchIndexedEvent {
	return &BatchIndexedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeBatchIndexed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Index:         index,
	}
}
