package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/embeddings/openai"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions"`
}

var _ = Describe("Embedder", func() {
	var (
		server  *httptest.Server
		lastReq embedRequest
		lastKey string
	)

	BeforeEach(func() {
		lastReq = embedRequest{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			lastKey = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&lastReq)).To(Succeed())

			dims := lastReq.Dimensions
			if dims == 0 {
				dims = 1536
			}

			// Respond in reverse order to exercise index re-ordering.
			data := make([]map[string]any, 0, len(lastReq.Input))
			for i := len(lastReq.Input) - 1; i >= 0; i-- {
				v := make([]float32, dims)
				v[0] = float32(i)
				data = append(data, map[string]any{"index": i, "embedding": v})
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"data": data})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL})
		Expect(err).To(MatchError(vector.ErrModelUnavailable))
	})

	It("uses the native size of known models", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Dimensions()).To(Equal(1536))
		Expect(e.Model()).To(Equal("openai/" + openai.DefaultEmbeddingModel))
	})

	It("requires dimensions for unknown models", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "k", Model: "custom"})
		Expect(err).To(MatchError(vector.ErrModelUnavailable))
	})

	It("re-orders the response by index", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "secret"})
		Expect(err).NotTo(HaveOccurred())

		vectors, err := e.Embed(context.Background(), []string{"zero", "one", "two"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors).To(HaveLen(3))
		for i, v := range vectors {
			Expect(v[0]).To(Equal(float32(i)))
		}
		Expect(lastKey).To(Equal("Bearer secret"))
		Expect(lastReq.Input).To(Equal([]string{"zero", "one", "two"}))
		Expect(lastReq.Dimensions).To(BeZero())
	})

	It("requests shortened embeddings when dimensions differ from the native size", func() {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "k", Dimensions: 384})
		Expect(err).NotTo(HaveOccurred())

		vectors, err := e.Embed(context.Background(), []string{"a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors[0]).To(HaveLen(384))
		Expect(lastReq.Dimensions).To(Equal(384))
	})

	It("reports ModelUnavailable on an API error", func() {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "invalid api key"}})
		}))
		defer failing.Close()

		e, err := openai.NewEmbedder(openai.EmbedderConfig{BaseURL: failing.URL, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Embed(context.Background(), []string{"a"})
		Expect(err).To(MatchError(vector.ErrModelUnavailable))
		Expect(err.Error()).To(ContainSubstring("invalid api key"))
	})
})
