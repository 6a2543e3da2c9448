package vector_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

var _ = Describe("Similarity", func() {
	Describe("CosineSimilarity", func() {
		DescribeTable("identical and opposite vectors",
			func(v []float32) {
				neg := make([]float32, len(v))
				for i, f := range v {
					neg[i] = -f
				}

				same, err := vector.CosineSimilarity(v, v)
				Expect(err).NotTo(HaveOccurred())
				Expect(same).To(BeNumerically("~", 1.0, 1e-9))

				opposite, err := vector.CosineSimilarity(v, neg)
				Expect(err).NotTo(HaveOccurred())
				Expect(opposite).To(BeNumerically("~", -1.0, 1e-9))
			},
			Entry("unit axis", []float32{1, 0, 0}),
			Entry("mixed signs", []float32{0.3, -1.2, 4.5, 0.01}),
			Entry("tiny magnitudes", []float32{1e-6, 2e-6, -3e-6}),
			Entry("large magnitudes", []float32{1e6, -2e6, 5e5}),
		)

		It("returns 0 for a zero vector", func() {
			score, err := vector.CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(Equal(0.0))
		})

		It("returns 0 for orthogonal vectors", func() {
			score, err := vector.CosineSimilarity([]float32{1, 0}, []float32{0, 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(BeNumerically("~", 0.0, 1e-12))
		})

		It("fails on a dimension mismatch", func() {
			_, err := vector.CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
			Expect(err).To(MatchError(vector.ErrSchemaConflict))
		})
	})

	Describe("Score", func() {
		a := []float32{1, 2, 3}
		b := []float32{4, 5, 6}

		It("uses the dot product for dot_product", func() {
			score, err := vector.Score(vector.MetricDotProduct, a, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(BeNumerically("~", 32.0, 1e-9))
		})

		It("maps L2 distance into (0, 1]", func() {
			score, err := vector.Score(vector.MetricL2, a, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(BeNumerically("~", 1.0/(1.0+math.Sqrt(27)), 1e-9))

			self, err := vector.Score(vector.MetricL2, a, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(self).To(Equal(1.0))
		})

		It("rejects an unknown metric", func() {
			_, err := vector.Score(vector.Metric("hamming"), a, b)
			Expect(err).To(MatchError(vector.ErrSchemaConflict))
		})
	})

	Describe("Finite", func() {
		It("detects NaN and Inf components", func() {
			Expect(vector.Finite([]float32{1, 2})).To(BeTrue())
			Expect(vector.Finite([]float32{1, float32(math.NaN())})).To(BeFalse())
			Expect(vector.Finite([]float32{float32(math.Inf(-1))})).To(BeFalse())
		})
	})

	Describe("ScoreOrZero", func() {
		It("maps scores the store could not compute to zero", func() {
			Expect(vector.ScoreOrZero(math.NaN())).To(BeZero())
			Expect(vector.ScoreOrZero(math.Inf(1))).To(BeZero())
			Expect(vector.ScoreOrZero(0.75)).To(Equal(0.75))
			Expect(vector.ScoreOrZero(-0.5)).To(Equal(-0.5))
		})
	})

	Describe("EncodeFloat32", func() {
		It("decodes what it encodes", func() {
			v := []float32{0.5, -1.25, 3}
			decoded, err := vector.DecodeFloat32(vector.EncodeFloat32(v))
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(v))
		})

		It("rejects truncated blobs", func() {
			_, err := vector.DecodeFloat32([]byte{1, 2, 3})
			Expect(err).To(HaveOccurred())
		})
	})
})
