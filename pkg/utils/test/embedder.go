package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// Dims is the vector size reported by Dimensions and used for the
	// default embedding.
	Dims int

	// FailOn causes Embed to return ErrModelUnavailable when any input text
	// matches
	FailOn string

	mu    sync.Mutex
	calls [][]string
}

func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		Dims:       dims,
	}
}

func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), texts...))
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("%w: mock embedding failure for: %s", vector.ErrModelUnavailable, text)
		}

		if emb, ok := m.Embeddings[text]; ok {
			out[i] = emb
			continue
		}

		// Default embedding for any text
		v := make([]float32, m.Dims)
		for j := range v {
			v[j] = 0.1
		}
		out[i] = v
	}
	return out, nil
}

// Calls returns the batches passed to Embed, in call order.
func (m *MockEmbedder) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

func (m *MockEmbedder) Dimensions() int {
	return m.Dims
}

func (m *MockEmbedder) Model() string {
	return fmt.Sprintf("mock:%d", m.Dims)
}

func (m *MockEmbedder) Close() error {
	return nil
}
