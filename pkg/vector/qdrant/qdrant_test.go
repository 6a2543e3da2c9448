package qdrant_test

import (
	"context"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/logger"
	testutils "github.com/papercomputeco/simsearch/pkg/utils/test"
	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/qdrant"
)

var _ = Describe("Driver", func() {
	Describe("PointID", func() {
		It("maps document ids onto stable UUIDs", func() {
			a := qdrant.PointID("doc-1")
			Expect(a).To(Equal(qdrant.PointID("doc-1")))
			Expect(a).NotTo(Equal(qdrant.PointID("doc-2")))

			parsed, err := uuid.Parse(a)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Version()).To(Equal(uuid.Version(5)))
		})
	})

	DescribeTable("widening exhaustive limits on ties",
		func(scores []float32, k, limit int, want bool) {
			Expect(qdrant.TiedAtLimit(scores, k, limit)).To(Equal(want))
		},
		Entry("short page", []float32{0.9, 0.5}, 2, 4, false),
		Entry("distinct last score", []float32{0.9, 0.5}, 2, 2, false),
		Entry("k-th score ties with the last", []float32{0.9, 0.5, 0.5, 0.5}, 2, 4, true),
		Entry("k-th score ties at k", []float32{0.9, 0.5}, 1, 2, false),
		Entry("whole page tied", []float32{0, 0, 0}, 3, 3, true),
	)

	Describe("NewDriver", func() {
		It("requires an address", func() {
			_, err := qdrant.NewDriver(context.Background(), qdrant.Config{}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrStoreUnavailable))
		})
	})

	Context("against Qdrant", func() {
		var addr string

		BeforeEach(func() {
			addr = os.Getenv("SIMSEARCH_TEST_QDRANT_ADDR")
			if addr == "" {
				Skip("SIMSEARCH_TEST_QDRANT_ADDR not set")
			}
		})

		newDriver := func() *qdrant.Driver {
			driver, err := qdrant.NewDriver(context.Background(), qdrant.Config{Addr: addr}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			return driver
		}

		testutils.DescribeDriverContract(func() vector.Driver {
			return newDriver()
		})

		It("keeps the lowest ids when scores tie at k", func() {
			ctx := context.Background()
			driver := newDriver()
			defer driver.Close()

			name := testutils.UniqueIndexName("ties")
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: name, Dimensions: 2, Metric: vector.MetricCosine})).To(Succeed())
			defer driver.DeleteIndex(ctx, name)

			docs := []vector.Document{}
			for _, id := range []string{"e", "d", "c", "b", "a"} {
				docs = append(docs, vector.Document{ID: id, Embedding: []float32{0, 1}})
			}
			_, err := driver.BulkUpsert(ctx, name, docs)
			Expect(err).NotTo(HaveOccurred())

			hits, err := driver.Query(ctx, name, vector.Query{Strategy: vector.StrategyExhaustive, Vector: []float32{0, 1}, K: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
			Expect(hits[0].ID).To(Equal("a"))
			Expect(hits[1].ID).To(Equal("b"))
		})

		It("rejects an exhaustive metric override", func() {
			ctx := context.Background()
			driver := newDriver()
			defer driver.Close()

			name := testutils.UniqueIndexName("override")
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: name, Dimensions: 2, Metric: vector.MetricCosine})).To(Succeed())
			defer driver.DeleteIndex(ctx, name)

			_, err := driver.Query(ctx, name, vector.Query{
				Strategy: vector.StrategyExhaustive,
				Vector:   []float32{1, 0},
				K:        1,
				Metric:   vector.MetricL2,
			})
			Expect(err).To(MatchError(vector.ErrSchemaConflict))
		})
	})
})
