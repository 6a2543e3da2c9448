package memory_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/logger"
	testutils "github.com/papercomputeco/simsearch/pkg/utils/test"
	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/memory"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriverContract(func() vector.Driver {
		return memory.NewDriver(logger.Nop())
	})

	Describe("failure hooks", func() {
		var (
			ctx    context.Context
			driver *memory.Driver
			schema vector.Schema
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = memory.NewDriver(logger.Nop())
			schema = vector.Schema{Name: "hooks", Dimensions: 2, Metric: vector.MetricDotProduct}
			Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
		})

		It("rejects documents registered with Reject", func() {
			driver.Reject("b", "mapping error on field title")

			results, err := driver.BulkUpsert(ctx, "hooks", []vector.Document{
				{ID: "a", Embedding: []float32{1, 0}},
				{ID: "b", Embedding: []float32{0, 1}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())
			Expect(results[1].Err).To(MatchError(vector.ErrDocumentRejected))
			Expect(results[1].Err.Error()).To(ContainSubstring("mapping error"))
		})

		It("fails only the next operation with FailNext", func() {
			driver.FailNext(errors.New("connection reset"))

			_, err := driver.Count(ctx, "hooks")
			Expect(err).To(MatchError(vector.ErrStoreUnavailable))
			Expect(err.Error()).To(ContainSubstring("connection reset"))

			_, err = driver.Count(ctx, "hooks")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("queries", func() {
		var (
			ctx    context.Context
			driver *memory.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = memory.NewDriver(logger.Nop())
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "q", Dimensions: 2, Metric: vector.MetricCosine})).To(Succeed())
			_, err := driver.BulkUpsert(ctx, "q", []vector.Document{
				{ID: "b", Embedding: []float32{1, 0}},
				{ID: "a", Embedding: []float32{2, 0}},
				{ID: "c", Embedding: []float32{0, 3}},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("breaks score ties by ascending id", func() {
			hits, err := driver.Query(ctx, "q", vector.Query{Strategy: vector.StrategyExhaustive, Vector: []float32{1, 0}, K: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].ID).To(Equal("a"))
			Expect(hits[1].ID).To(Equal("b"))
		})

		It("applies a metric override on exhaustive queries", func() {
			hits, err := driver.Query(ctx, "q", vector.Query{
				Strategy: vector.StrategyExhaustive,
				Vector:   []float32{1, 0},
				K:        1,
				Metric:   vector.MetricDotProduct,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].ID).To(Equal("a"))
			Expect(hits[0].Score).To(BeNumerically("~", 2.0, 1e-9))
		})

		It("answers approximate queries exactly", func() {
			hits, err := driver.Query(ctx, "q", vector.Query{Strategy: vector.StrategyANN, Vector: []float32{0, 1}, K: 1, NumCandidates: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].ID).To(Equal("c"))
		})
	})
})
