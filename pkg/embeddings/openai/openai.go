// Package openai implements pkg/embeddings' Embedder client for OpenAI
// compatible /v1/embeddings APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/papercomputeco/simsearch/pkg/embeddings"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"
)

// knownDimensions are the native output sizes of OpenAI embedding models.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is sent as a bearer token. Required.
	APIKey string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions overrides the model's native size. text-embedding-3 models
	// support shortened embeddings; other models must use their native size.
	Dimensions int
}

// Embedder wraps OpenAI's embedding API.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	shortened  bool
	httpClient *http.Client
}

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", vector.ErrModelUnavailable)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	native, known := knownDimensions[model]
	dims := cfg.Dimensions
	switch {
	case dims == 0 && !known:
		return nil, fmt.Errorf("%w: dimensions must be configured for unknown model %q", vector.ErrModelUnavailable, model)
	case dims == 0:
		dims = native
	}

	return &Embedder{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		shortened:  known && dims != native,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Embed converts texts into vector embeddings with a single API call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := embedRequest{
		Model: e.model,
		Input: texts,
	}
	if e.shortened {
		reqBody.Dimensions = e.dimensions
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrModelUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vector.ErrModelUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", vector.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("%w: openai returned status %d: %s",
			vector.ErrModelUnavailable, resp.StatusCode, errResp.Error.Message)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrModelUnavailable, err)
	}

	// Data is not guaranteed to be in request order
	vectors := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: response index %d out of range", vector.ErrModelUnavailable, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	if err := embeddings.CheckBatch(texts, vectors, e.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Model returns the model name.
func (e *Embedder) Model() string {
	return "openai/" + e.model
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
