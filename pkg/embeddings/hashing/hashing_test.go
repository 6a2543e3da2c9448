package hashing_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/embeddings/hashing"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var e *hashing.Embedder

	BeforeEach(func() {
		var err error
		e, err = hashing.NewEmbedder(hashing.DefaultDimensions)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects non-positive dimensions", func() {
		_, err := hashing.NewEmbedder(0)
		Expect(err).To(MatchError(vector.ErrModelUnavailable))
	})

	It("reports its identity and size", func() {
		Expect(e.Dimensions()).To(Equal(384))
		Expect(e.Model()).To(Equal("hashing:384"))
	})

	It("is deterministic", func() {
		a, err := e.Embed(context.Background(), []string{"Sea level rise"})
		Expect(err).NotTo(HaveOccurred())
		b, err := e.Embed(context.Background(), []string{"Sea level rise"})
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("produces unit-length vectors of the declared size", func() {
		vectors, err := e.Embed(context.Background(), []string{"climate change and glaciers", "renewable energy"})
		Expect(err).NotTo(HaveOccurred())
		for _, v := range vectors {
			Expect(v).To(HaveLen(384))
			var norm float64
			for _, x := range v {
				norm += float64(x) * float64(x)
			}
			Expect(math.Sqrt(norm)).To(BeNumerically("~", 1, 1e-5))
		}
	})

	It("returns the zero vector for text with no content words", func() {
		vectors, err := e.Embed(context.Background(), []string{"the and of"})
		Expect(err).NotTo(HaveOccurred())
		for _, x := range vectors[0] {
			Expect(x).To(BeZero())
		}
	})

	It("scores texts sharing vocabulary above unrelated texts", func() {
		vectors, err := e.Embed(context.Background(), []string{
			"glaciers melting climate",
			"climate change melting glaciers",
			"stock market quarterly earnings",
		})
		Expect(err).NotTo(HaveOccurred())

		related, err := vector.CosineSimilarity(vectors[0], vectors[1])
		Expect(err).NotTo(HaveOccurred())
		unrelated, err := vector.CosineSimilarity(vectors[0], vectors[2])
		Expect(err).NotTo(HaveOccurred())
		Expect(related).To(BeNumerically(">", unrelated))
	})

	It("relates word forms that share character trigrams", func() {
		vectors, err := e.Embed(context.Background(), []string{"farming", "warming", "solar"})
		Expect(err).NotTo(HaveOccurred())

		related, err := vector.CosineSimilarity(vectors[0], vectors[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(related).To(BeNumerically(">", 0.5))

		unrelated, err := vector.CosineSimilarity(vectors[0], vectors[2])
		Expect(err).NotTo(HaveOccurred())
		Expect(unrelated).To(BeNumerically("<", related))
	})

	It("fails when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Embed(ctx, []string{"a"})
		Expect(err).To(MatchError(vector.ErrModelUnavailable))
	})

	Describe("Tokenize", func() {
		It("lower-cases, splits on punctuation and drops stop words", func() {
			Expect(hashing.Tokenize("The Ocean's rise, and CO2!")).To(Equal([]string{"ocean", "s", "rise", "co2"}))
		})
	})
})
