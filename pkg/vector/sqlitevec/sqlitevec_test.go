package sqlitevec_test

import (
	"context"
	"math"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/embeddings/hashing"
	"github.com/papercomputeco/simsearch/pkg/logger"
	testutils "github.com/papercomputeco/simsearch/pkg/utils/test"
	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrStoreUnavailable))
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("should create a driver with an in-memory database", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())
		})
	})

	testutils.DescribeDriverContract(func() vector.Driver {
		driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return driver
	})

	Describe("schema", func() {
		var (
			ctx    context.Context
			driver *sqlitevec.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			var err error
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("rejects the dot product metric", func() {
			err := driver.CreateIndex(ctx, vector.Schema{Name: "dot", Dimensions: 4, Metric: vector.MetricDotProduct})
			Expect(err).To(MatchError(vector.ErrSchemaConflict))

			exists, err := driver.IndexExists(ctx, "dot")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("accepts index names containing dashes", func() {
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "my-index", Dimensions: 2, Metric: vector.MetricCosine})).To(Succeed())
			results, err := driver.BulkUpsert(ctx, "my-index", []vector.Document{{ID: "a", Embedding: []float32{1, 0}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())
		})

		It("keeps indexes isolated from each other", func() {
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "one", Dimensions: 2, Metric: vector.MetricCosine})).To(Succeed())
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "two", Dimensions: 3, Metric: vector.MetricL2})).To(Succeed())

			_, err := driver.BulkUpsert(ctx, "one", []vector.Document{{ID: "a", Embedding: []float32{1, 0}}})
			Expect(err).NotTo(HaveOccurred())

			count, err := driver.Count(ctx, "two")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("scores exhaustive queries with an overriding metric", func() {
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "ovr", Dimensions: 2, Metric: vector.MetricCosine})).To(Succeed())
			_, err := driver.BulkUpsert(ctx, "ovr", []vector.Document{
				{ID: "short", Embedding: []float32{1, 0}},
				{ID: "long", Embedding: []float32{3, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			hits, err := driver.Query(ctx, "ovr", vector.Query{
				Strategy: vector.StrategyExhaustive,
				Vector:   []float32{1, 0},
				K:        2,
				Metric:   vector.MetricDotProduct,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].ID).To(Equal("long"))
			Expect(hits[0].Score).To(BeNumerically("~", 3.0, 1e-6))
		})

		It("rejects documents without an id or with non-finite embeddings", func() {
			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "nan", Dimensions: 2, Metric: vector.MetricL2})).To(Succeed())
			results, err := driver.BulkUpsert(ctx, "nan", []vector.Document{
				{ID: "ok", Embedding: []float32{1, 0}},
				{ID: "", Embedding: []float32{1, 0}},
				{ID: "nan", Embedding: []float32{float32(math.NaN()), 0}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Err).NotTo(HaveOccurred())
			Expect(results[1].Err).To(MatchError(vector.ErrDocumentRejected))
			Expect(results[2].Err).To(MatchError(vector.ErrDocumentRejected))
		})
	})

	Describe("stop-word-only text", func() {
		var (
			ctx      context.Context
			driver   *sqlitevec.Driver
			embedder *hashing.Embedder
		)

		embed := func(text string) []float32 {
			vectors, err := embedder.Embed(ctx, []string{text})
			Expect(err).NotTo(HaveOccurred())
			return vectors[0]
		}

		BeforeEach(func() {
			ctx = context.Background()
			var err error
			embedder, err = hashing.NewEmbedder(hashing.DefaultDimensions)
			Expect(err).NotTo(HaveOccurred())
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { Expect(driver.Close()).To(Succeed()) })

			Expect(driver.CreateIndex(ctx, vector.Schema{Name: "notes", Dimensions: hashing.DefaultDimensions, Metric: vector.MetricCosine})).To(Succeed())
			results, err := driver.BulkUpsert(ctx, "notes", []vector.Document{
				{ID: "1", Embedding: embed("Climate change is affecting agriculture")},
				{ID: "2", Embedding: embed("Artificial intelligence")},
				{ID: "3", Embedding: embed("The")},
			})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Err).NotTo(HaveOccurred())
			}
		})

		It("answers approximate queries next to a document that embeds to zero", func() {
			hits, err := driver.Query(ctx, "notes", vector.Query{
				Strategy:      vector.StrategyANN,
				Vector:        embed("climate"),
				K:             3,
				NumCandidates: 10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			Expect(hits[0].ID).To(Equal("1"))
			Expect(hits[0].Score).To(BeNumerically(">", 0))
			for _, h := range hits {
				Expect(math.IsNaN(h.Score)).To(BeFalse())
			}
		})

		It("answers approximate queries whose text embeds to zero", func() {
			hits, err := driver.Query(ctx, "notes", vector.Query{
				Strategy:      vector.StrategyANN,
				Vector:        embed("the"),
				K:             3,
				NumCandidates: 10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			for _, h := range hits {
				Expect(h.Score).To(BeZero())
			}
			Expect(hits[0].ID).To(Equal("1"))
		})
	})

	Describe("persistence", func() {
		It("keeps schemas and documents across reopen", func() {
			ctx := context.Background()
			path := filepath.Join(GinkgoT().TempDir(), "vectors.db")

			driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: path}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			schema := vector.Schema{Name: "persist", Dimensions: 2, Metric: vector.MetricCosine, TextFields: []string{"title", "content"}}
			Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
			_, err = driver.BulkUpsert(ctx, "persist", []vector.Document{{ID: "a", Embedding: []float32{1, 0}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())

			reopened, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: path}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			described, err := reopened.Describe(ctx, "persist")
			Expect(err).NotTo(HaveOccurred())
			Expect(described).To(Equal(schema))

			count, err := reopened.Count(ctx, "persist")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})
})
