package testutils

import (
	"context"
	"strings"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/vector"
)

// UniqueIndexName returns an index name unlikely to collide with other test
// runs sharing an external store.
func UniqueIndexName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// DescribeDriverContract registers the tests every vector.Driver must pass.
// newDriver is called before each test; the returned driver is closed after it.
func DescribeDriverContract(newDriver func() vector.Driver) {
	Describe("driver contract", func() {
		var (
			ctx    context.Context
			driver vector.Driver
			name   string
			schema vector.Schema
		)

		doc := func(id, title string, emb ...float32) vector.Document {
			return vector.Document{
				ID:        id,
				Fields:    map[string]string{"title": title},
				Metadata:  map[string]any{"source": "test", "published": true},
				Embedding: emb,
			}
		}

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
			name = UniqueIndexName("contract")
			schema = vector.Schema{
				Name:       name,
				Dimensions: 3,
				Metric:     vector.MetricCosine,
				TextFields: []string{"title"},
			}
			DeferCleanup(func() {
				_ = driver.DeleteIndex(ctx, name)
				Expect(driver.Close()).To(Succeed())
			})
		})

		Describe("index lifecycle", func() {
			It("creates and describes an index", func() {
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())

				exists, err := driver.IndexExists(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeTrue())

				described, err := driver.Describe(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(described.Name).To(Equal(name))
				Expect(described.Dimensions).To(Equal(3))
				Expect(described.Metric).To(Equal(vector.MetricCosine))
				Expect(described.TextFields).To(Equal([]string{"title"}))
			})

			It("refuses to create an index twice", func() {
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
				Expect(driver.CreateIndex(ctx, schema)).To(MatchError(vector.ErrSchemaConflict))
			})

			It("drops an index and its documents", func() {
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
				_, err := driver.BulkUpsert(ctx, name, []vector.Document{doc("a", "A", 1, 0, 0)})
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.DeleteIndex(ctx, name)).To(Succeed())
				exists, err := driver.IndexExists(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeFalse())

				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
				count, err := driver.Count(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(BeZero())
			})

			It("treats deleting a missing index as a no-op", func() {
				Expect(driver.DeleteIndex(ctx, name)).To(Succeed())
			})

			It("reports a missing index as store unavailable", func() {
				exists, err := driver.IndexExists(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeFalse())

				_, err = driver.Describe(ctx, name)
				Expect(err).To(MatchError(vector.ErrIndexNotFound))
				Expect(err).To(MatchError(vector.ErrStoreUnavailable))

				_, err = driver.Query(ctx, name, vector.Query{Strategy: vector.StrategyExhaustive, Vector: []float32{1, 0, 0}, K: 1})
				Expect(err).To(MatchError(vector.ErrIndexNotFound))

				_, err = driver.BulkUpsert(ctx, name, []vector.Document{doc("a", "A", 1, 0, 0)})
				Expect(err).To(MatchError(vector.ErrIndexNotFound))
			})
		})

		Describe("documents", func() {
			BeforeEach(func() {
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
			})

			It("upserts by id without creating duplicates", func() {
				results, err := driver.BulkUpsert(ctx, name, []vector.Document{
					doc("a", "first", 1, 0, 0),
					doc("b", "second", 0, 1, 0),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(2))
				for _, r := range results {
					Expect(r.Err).NotTo(HaveOccurred())
				}

				_, err = driver.BulkUpsert(ctx, name, []vector.Document{doc("a", "replaced", 0, 0, 1)})
				Expect(err).NotTo(HaveOccurred())

				count, err := driver.Count(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(2))

				hits, err := driver.Query(ctx, name, vector.Query{
					Strategy: vector.StrategyExhaustive,
					Vector:   []float32{0, 0, 1},
					K:        1,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(hits).To(HaveLen(1))
				Expect(hits[0].ID).To(Equal("a"))
				Expect(hits[0].Fields).To(HaveKeyWithValue("title", "replaced"))
			})

			It("rejects a document with the wrong dimensionality without failing the batch", func() {
				results, err := driver.BulkUpsert(ctx, name, []vector.Document{
					doc("good", "ok", 1, 0, 0),
					doc("bad", "short", 1, 0),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(2))
				Expect(results[0].ID).To(Equal("good"))
				Expect(results[0].Err).NotTo(HaveOccurred())
				Expect(results[1].ID).To(Equal("bad"))
				Expect(results[1].Err).To(MatchError(vector.ErrDocumentRejected))

				count, err := driver.Count(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(1))
			})

			It("deletes documents by id", func() {
				_, err := driver.BulkUpsert(ctx, name, []vector.Document{
					doc("a", "A", 1, 0, 0),
					doc("b", "B", 0, 1, 0),
				})
				Expect(err).NotTo(HaveOccurred())

				Expect(driver.Delete(ctx, name, []string{"a", "missing"})).To(Succeed())

				count, err := driver.Count(ctx, name)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(1))
			})
		})

		Describe("queries", func() {
			BeforeEach(func() {
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
			})

			It("returns nothing for an empty index", func() {
				for _, s := range []vector.Strategy{vector.StrategyExhaustive, vector.StrategyANN} {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy:      s,
						Vector:        []float32{1, 0, 0},
						K:             5,
						NumCandidates: 10,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(hits).To(BeEmpty())
				}
			})

			Context("with documents", func() {
				BeforeEach(func() {
					_, err := driver.BulkUpsert(ctx, name, []vector.Document{
						doc("x", "x axis", 1, 0, 0),
						doc("xy", "diagonal", 1, 1, 0),
						doc("y", "y axis", 0, 1, 0),
						doc("z", "z axis", 0, 0, 1),
					})
					Expect(err).NotTo(HaveOccurred())
				})

				It("ranks exhaustively by cosine similarity", func() {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy: vector.StrategyExhaustive,
						Vector:   []float32{1, 0.1, 0},
						K:        3,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(hits).To(HaveLen(3))
					Expect(hits[0].ID).To(Equal("x"))
					Expect(hits[1].ID).To(Equal("xy"))
					Expect(hits[2].ID).To(Equal("y"))
					Expect(hits[0].Score).To(BeNumerically(">", hits[1].Score))
				})

				It("scores an identical vector as fully similar", func() {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy: vector.StrategyExhaustive,
						Vector:   []float32{0, 0, 2},
						K:        1,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(hits[0].ID).To(Equal("z"))
					Expect(hits[0].Score).To(BeNumerically("~", 1.0, 1e-4))
				})

				It("returns the source fields and metadata", func() {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy: vector.StrategyExhaustive,
						Vector:   []float32{0, 1, 0},
						K:        1,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(hits[0].Fields).To(Equal(map[string]string{"title": "y axis"}))
					Expect(hits[0].Metadata).To(HaveKeyWithValue("source", "test"))
					Expect(hits[0].Metadata).To(HaveKeyWithValue("published", true))
				})

				It("returns every document when k exceeds the index size", func() {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy: vector.StrategyExhaustive,
						Vector:   []float32{1, 0, 0},
						K:        50,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(hits).To(HaveLen(4))
				})

				It("finds the nearest neighbour approximately", func() {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy:      vector.StrategyANN,
						Vector:        []float32{0, 0.1, 1},
						K:             1,
						NumCandidates: 10,
					})
					Expect(err).NotTo(HaveOccurred())
					Expect(hits).To(HaveLen(1))
					Expect(hits[0].ID).To(Equal("z"))
				})
			})
		})

		Describe("zero vectors", func() {
			BeforeEach(func() {
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
				_, err := driver.BulkUpsert(ctx, name, []vector.Document{
					doc("real", "climate", 1, 0, 0),
					doc("empty", "the", 0, 0, 0),
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("scores a stored zero vector as zero exhaustively", func() {
				hits, err := driver.Query(ctx, name, vector.Query{
					Strategy: vector.StrategyExhaustive,
					Vector:   []float32{1, 0, 0},
					K:        2,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(hits).To(HaveLen(2))
				Expect(hits[0].ID).To(Equal("real"))
				Expect(hits[0].Score).To(BeNumerically("~", 1.0, 1e-4))
				Expect(hits[1].ID).To(Equal("empty"))
				Expect(hits[1].Score).To(BeZero())
			})

			It("keeps approximate search working next to a stored zero vector", func() {
				hits, err := driver.Query(ctx, name, vector.Query{
					Strategy:      vector.StrategyANN,
					Vector:        []float32{1, 0, 0},
					K:             2,
					NumCandidates: 10,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(hits).NotTo(BeEmpty())
				Expect(hits[0].ID).To(Equal("real"))
				Expect(hits[0].Score).To(BeNumerically("~", 1.0, 1e-4))
				for _, h := range hits[1:] {
					Expect(h.Score).To(BeZero())
				}
			})

			It("scores every document as zero for a zero query", func() {
				for _, s := range []vector.Strategy{vector.StrategyExhaustive, vector.StrategyANN} {
					hits, err := driver.Query(ctx, name, vector.Query{
						Strategy:      s,
						Vector:        []float32{0, 0, 0},
						K:             2,
						NumCandidates: 10,
					})
					Expect(err).NotTo(HaveOccurred(), "strategy %s", s)
					for _, h := range hits {
						Expect(h.Score).To(BeZero(), "strategy %s, id %s", s, h.ID)
					}
					if s == vector.StrategyExhaustive {
						Expect(hits).To(HaveLen(2))
						Expect(hits[0].ID).To(Equal("empty"))
						Expect(hits[1].ID).To(Equal("real"))
					}
				}
			})
		})

		Describe("l2 indexes", func() {
			It("scores by inverse euclidean distance", func() {
				schema.Metric = vector.MetricL2
				Expect(driver.CreateIndex(ctx, schema)).To(Succeed())
				_, err := driver.BulkUpsert(ctx, name, []vector.Document{
					doc("origin", "o", 0, 0, 0),
					doc("far", "f", 3, 4, 0),
				})
				Expect(err).NotTo(HaveOccurred())

				hits, err := driver.Query(ctx, name, vector.Query{
					Strategy: vector.StrategyExhaustive,
					Vector:   []float32{0, 0, 0},
					K:        2,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(hits).To(HaveLen(2))
				Expect(hits[0].ID).To(Equal("origin"))
				Expect(hits[0].Score).To(BeNumerically("~", 1.0, 1e-4))
				Expect(hits[1].Score).To(BeNumerically("~", 1.0/6.0, 1e-4))
			})
		})
	})
}
