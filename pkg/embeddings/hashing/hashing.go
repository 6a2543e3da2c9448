// Package hashing implements a deterministic feature-hashing Embedder which
// needs no model download or network access. Each lower-cased word token and
// each character trigram of the token (padded with < and >) is hashed into one
// of Dimensions buckets with a hash-derived sign, and the resulting vector is
// L2 normalised. Texts sharing vocabulary score high, and related word forms
// such as "farming" and "warming" or "rise" and "rising" still overlap.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/papercomputeco/simsearch/pkg/embeddings"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

// DefaultDimensions matches the output size of all-MiniLM-L6-v2.
const DefaultDimensions = 384

const (
	gramSize   = 3
	gramPrefix = "g:"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "being": true, "by": true, "for": true,
	"from": true, "in": true, "is": true, "it": true, "its": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "were": true, "with": true, "like": true,
}

// Embedder is a stateless feature-hashing embedder.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimensions int) (*Embedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: hashing dimensions must be positive, got %d", vector.ErrModelUnavailable, dimensions)
	}
	return &Embedder{dimensions: dimensions}, nil
}

// Embed converts texts into vectors. It never fails for valid input.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrModelUnavailable, err)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	acc := make([]float64, e.dimensions)
	for _, tok := range Tokenize(text) {
		for _, f := range features(tok) {
			h := fnv.New64a()
			_, _ = h.Write([]byte(f))
			sum := h.Sum64()

			bucket := sum % uint64(e.dimensions)
			sign := 1.0
			if sum>>63 == 1 {
				sign = -1.0
			}
			acc[bucket] += sign
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	v := make([]float32, e.dimensions)
	if norm == 0 {
		return v
	}
	for i, a := range acc {
		v[i] = float32(a / norm)
	}
	return v
}

// features returns the token itself followed by its padded character
// trigrams. Trigrams carry a prefix so they never hash like a word.
func features(tok string) []string {
	padded := []rune("<" + tok + ">")
	out := make([]string, 0, len(padded)-gramSize+2)
	out = append(out, tok)
	for i := 0; i+gramSize <= len(padded); i++ {
		out = append(out, gramPrefix+string(padded[i:i+gramSize]))
	}
	return out
}

// Tokenize splits text into lower-cased word tokens, dropping stop words.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := words[:0]
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Dimensions returns the output vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model identity.
func (e *Embedder) Model() string {
	return fmt.Sprintf("hashing:%d", e.dimensions)
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
