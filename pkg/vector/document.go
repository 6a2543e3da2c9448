package vector

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// EmbedText returns the text embedded for the document: its text fields
// joined by newlines, in the order given by fields. Fields not listed are
// appended in sorted order.
func (d Document) EmbedText(fields []string) string {
	parts := make([]string, 0, len(d.Fields))
	used := make(map[string]bool, len(fields))
	for _, f := range fields {
		used[f] = true
		if v := strings.TrimSpace(d.Fields[f]); v != "" {
			parts = append(parts, v)
		}
	}
	for _, f := range slices.Sorted(maps.Keys(d.Fields)) {
		if used[f] {
			continue
		}
		if v := strings.TrimSpace(d.Fields[f]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

// Clone returns a copy of the document that shares no maps or slices with d.
func (d Document) Clone() Document {
	out := Document{
		ID:       d.ID,
		Fields:   maps.Clone(d.Fields),
		Metadata: maps.Clone(d.Metadata),
	}
	if d.Embedding != nil {
		out.Embedding = append([]float32(nil), d.Embedding...)
	}
	return out
}

// ValidateMetadata checks that every metadata value is a scalar: a string,
// bool, number or nil.
func ValidateMetadata(md map[string]any) error {
	for k, v := range md {
		if k == "" {
			return fmt.Errorf("empty metadata key")
		}
		switch v.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("metadata %q has non-scalar value of type %T", k, v)
		}
	}
	return nil
}
