package embeddingutils_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/embeddings/cache"
	"github.com/papercomputeco/simsearch/pkg/embeddings/hashing"
	embeddingutils "github.com/papercomputeco/simsearch/pkg/embeddings/utils"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

var _ = Describe("NewEmbedder", func() {
	It("defaults to the hashing provider with 384 dimensions", func() {
		e, err := embeddingutils.NewEmbedder(context.Background(), &embeddingutils.NewEmbedderOpts{})
		Expect(err).NotTo(HaveOccurred())
		Expect(e).To(BeAssignableToTypeOf(&hashing.Embedder{}))
		Expect(e.Dimensions()).To(Equal(384))
	})

	It("wraps the embedder with a cache when a path is set", func() {
		e, err := embeddingutils.NewEmbedder(context.Background(), &embeddingutils.NewEmbedderOpts{
			ProviderType: "hashing",
			Dimensions:   16,
			CachePath:    filepath.Join(GinkgoT().TempDir(), "cache.db"),
		})
		Expect(err).NotTo(HaveOccurred())
		defer e.Close()
		Expect(e).To(BeAssignableToTypeOf(&cache.Embedder{}))
		Expect(e.Model()).To(Equal("hashing:16"))
	})

	It("rejects unknown providers", func() {
		_, err := embeddingutils.NewEmbedder(context.Background(), &embeddingutils.NewEmbedderOpts{ProviderType: "word2vec"})
		Expect(err).To(MatchError(vector.ErrModelUnavailable))
		Expect(err.Error()).To(ContainSubstring("unsupported embedding provider"))
	})
})
