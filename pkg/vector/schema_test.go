package vector_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

var _ = Describe("Schema", func() {
	valid := vector.Schema{
		Name:       "semantic_search",
		Dimensions: 384,
		Metric:     vector.MetricCosine,
		TextFields: []string{"title", "content"},
	}

	It("accepts a valid schema", func() {
		Expect(valid.Validate()).To(Succeed())
	})

	DescribeTable("rejects invalid schemas with ErrSchemaConflict",
		func(mutate func(s *vector.Schema)) {
			s := valid
			s.TextFields = append([]string(nil), valid.TextFields...)
			mutate(&s)
			Expect(s.Validate()).To(MatchError(vector.ErrSchemaConflict))
		},
		Entry("zero dimensions", func(s *vector.Schema) { s.Dimensions = 0 }),
		Entry("negative dimensions", func(s *vector.Schema) { s.Dimensions = -3 }),
		Entry("unknown metric", func(s *vector.Schema) { s.Metric = "manhattan" }),
		Entry("empty name", func(s *vector.Schema) { s.Name = "" }),
		Entry("uppercase name", func(s *vector.Schema) { s.Name = "Movies" }),
		Entry("name with spaces", func(s *vector.Schema) { s.Name = "my index" }),
		Entry("duplicate text field", func(s *vector.Schema) { s.TextFields = []string{"title", "title"} }),
		Entry("empty text field", func(s *vector.Schema) { s.TextFields = []string{""} }),
	)

	It("treats an empty text field set as unconstrained", func() {
		s := valid
		s.TextFields = nil
		Expect(s.HasField("anything")).To(BeTrue())
		Expect(valid.HasField("title")).To(BeTrue())
		Expect(valid.HasField("plot")).To(BeFalse())
	})

	Describe("ParseMetric", func() {
		DescribeTable("aliases",
			func(in string, want vector.Metric) {
				m, err := vector.ParseMetric(in)
				Expect(err).NotTo(HaveOccurred())
				Expect(m).To(Equal(want))
			},
			Entry("cosine", "cosine", vector.MetricCosine),
			Entry("dot", "dot", vector.MetricDotProduct),
			Entry("dot_product", "dot_product", vector.MetricDotProduct),
			Entry("l2", "l2", vector.MetricL2),
			Entry("euclidean", "euclidean", vector.MetricL2),
		)

		It("rejects unknown metrics", func() {
			_, err := vector.ParseMetric("jaccard")
			Expect(err).To(MatchError(vector.ErrSchemaConflict))
		})
	})

	Describe("ParseStrategy", func() {
		It("accepts both strategies and their aliases", func() {
			s, err := vector.ParseStrategy("knn")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(vector.StrategyANN))

			s, err = vector.ParseStrategy("exhaustive")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(vector.StrategyExhaustive))
		})

		It("rejects unknown strategies", func() {
			_, err := vector.ParseStrategy("magic")
			Expect(err).To(MatchError(vector.ErrInvalidQuery))
		})
	})
})

var _ = Describe("Document", func() {
	It("builds embed text in field order", func() {
		doc := vector.Document{Fields: map[string]string{
			"content": "Body text",
			"title":   "Heading",
			"extra":   "More",
		}}
		Expect(doc.EmbedText([]string{"title", "content"})).To(Equal("Heading\nBody text\nMore"))
	})

	It("clones without sharing state", func() {
		doc := vector.Document{ID: "1", Fields: map[string]string{"a": "b"}, Embedding: []float32{1}}
		c := doc.Clone()
		c.Fields["a"] = "changed"
		c.Embedding[0] = 9
		Expect(doc.Fields["a"]).To(Equal("b"))
		Expect(doc.Embedding[0]).To(Equal(float32(1)))
	})

	It("rejects non-scalar metadata", func() {
		Expect(vector.ValidateMetadata(map[string]any{"year": 1908, "genre": "comedy", "x": nil})).To(Succeed())
		Expect(vector.ValidateMetadata(map[string]any{"cast": []string{"a"}})).To(HaveOccurred())
	})
})
