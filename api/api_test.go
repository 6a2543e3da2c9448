package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/logger"
	"github.com/papercomputeco/simsearch/pkg/search"
	testutils "github.com/papercomputeco/simsearch/pkg/utils/test"
	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/memory"
)

func newTestServer(driver vector.Driver, embedder *testutils.MockEmbedder) *Server {
	manager := index.NewManager(driver, logger.Nop())
	server, err := NewServer(
		Config{
			ListenAddr: ":0",
			DefaultSchema: vector.Schema{
				Name:       "articles",
				Dimensions: 4,
				Metric:     vector.MetricCosine,
				TextFields: []string{"title", "content"},
			},
			DefaultTopK: 2,
		},
		manager,
		index.NewIndexer(manager, embedder, logger.Nop()),
		search.NewEngine(manager, embedder, logger.Nop()),
		logger.Nop(),
	)
	Expect(err).NotTo(HaveOccurred())
	return server
}

func do(server *Server, method, target, body string) (*http.Response, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(data)
}

var _ = Describe("Server", func() {
	var (
		driver   *memory.Driver
		embedder *testutils.MockEmbedder
		server   *Server
	)

	BeforeEach(func() {
		driver = memory.NewDriver(logger.Nop())
		embedder = testutils.NewMockEmbedder(4)
		embedder.Embeddings["Sea levels\nOceans are rising."] = []float32{1, 0, 0, 0}
		embedder.Embeddings["Heat\nRecord summer."] = []float32{0.7, 0.7, 0, 0}
		embedder.Embeddings["Football\nLate winner."] = []float32{0, 0, 1, 0}
		embedder.Embeddings["climate"] = []float32{1, 0, 0, 0}
		server = newTestServer(driver, embedder)
	})

	createIndex := func() {
		resp, _ := do(server, http.MethodPut, "/v1/indexes/articles", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	}

	loadArticles := func() {
		createIndex()
		resp, body := do(server, http.MethodPost, "/v1/indexes/articles/documents", `{"documents":[
			{"id":"1","fields":{"title":"Sea levels","content":"Oceans are rising."},"metadata":{"year":2024}},
			{"id":"2","fields":{"title":"Heat","content":"Record summer."}},
			{"id":"3","fields":{"title":"Football","content":"Late winner."}}
		]}`)
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK), body)
	}

	It("answers ping", func() {
		resp, body := do(server, http.MethodGet, "/ping", "")
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(body).To(Equal(`"pong"`))
	})

	Describe("PUT /v1/indexes/:name", func() {
		It("creates the index with the default schema", func() {
			resp, body := do(server, http.MethodPut, "/v1/indexes/articles", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var status IndexStatus
			Expect(json.Unmarshal([]byte(body), &status)).To(Succeed())
			Expect(status.Exists).To(BeTrue())
			Expect(status.Schema.Dimensions).To(Equal(4))
			Expect(status.Schema.TextFields).To(Equal([]string{"title", "content"}))
		})

		It("applies overrides from the body", func() {
			resp, body := do(server, http.MethodPut, "/v1/indexes/papers", `{"dimensions":8,"metric":"l2_norm","text_fields":["abstract"]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var status IndexStatus
			Expect(json.Unmarshal([]byte(body), &status)).To(Succeed())
			Expect(status.Schema.Dimensions).To(Equal(8))
			Expect(status.Schema.Metric).To(Equal(vector.MetricL2))
			Expect(status.Schema.TextFields).To(Equal([]string{"abstract"}))
		})

		It("returns 400 for an invalid schema", func() {
			resp, body := do(server, http.MethodPut, "/v1/indexes/papers", `{"metric":"hamming"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(body).To(ContainSubstring("schema conflict"))

			resp, _ = do(server, http.MethodPut, "/v1/indexes/Bad%20Name", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("empties an existing index", func() {
			loadArticles()
			createIndex()

			_, body := do(server, http.MethodGet, "/v1/indexes/articles", "")
			var status IndexStatus
			Expect(json.Unmarshal([]byte(body), &status)).To(Succeed())
			Expect(status.Count).To(Equal(0))
		})
	})

	Describe("GET /v1/indexes/:name", func() {
		It("returns 404 for a missing index", func() {
			resp, body := do(server, http.MethodGet, "/v1/indexes/missing", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			Expect(body).To(ContainSubstring(`"exists":false`))
		})

		It("reports the document count and schema", func() {
			loadArticles()

			resp, body := do(server, http.MethodGet, "/v1/indexes/articles", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var status IndexStatus
			Expect(json.Unmarshal([]byte(body), &status)).To(Succeed())
			Expect(status.Count).To(Equal(3))
			Expect(status.Schema.Metric).To(Equal(vector.MetricCosine))
		})
	})

	Describe("DELETE /v1/indexes/:name", func() {
		It("drops the index", func() {
			loadArticles()

			resp, _ := do(server, http.MethodDelete, "/v1/indexes/articles", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			resp, _ = do(server, http.MethodGet, "/v1/indexes/articles", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("POST /v1/indexes/:name/documents", func() {
		It("returns 200 with a report of partial failures", func() {
			createIndex()

			resp, body := do(server, http.MethodPost, "/v1/indexes/articles/documents", `{"documents":[
				{"id":"1","fields":{"title":"Sea levels","content":"Oceans are rising."}},
				{"id":"2","fields":{"author":"nobody"}},
				{"id":"3","embedding":[1,2,3]}
			]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var report index.Report
			Expect(json.Unmarshal([]byte(body), &report)).To(Succeed())
			Expect(report.Attempted).To(Equal(3))
			Expect(report.Succeeded).To(Equal(1))
			Expect(report.Failed).To(HaveLen(2))
		})

		It("returns 400 for a malformed body", func() {
			createIndex()

			resp, _ := do(server, http.MethodPost, "/v1/indexes/articles/documents", `{"documents":`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			resp, body := do(server, http.MethodPost, "/v1/indexes/articles/documents", `{"documents":[]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(body).To(ContainSubstring("documents are required"))
		})

		It("returns 404 for a missing index", func() {
			resp, _ := do(server, http.MethodPost, "/v1/indexes/missing/documents", `{"documents":[{"id":"1","fields":{"title":"x"}}]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 503 when the model is unavailable", func() {
			createIndex()
			embedder.FailOn = "x"

			resp, body := do(server, http.MethodPost, "/v1/indexes/articles/documents", `{"documents":[{"id":"1","fields":{"title":"x"}}]}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			Expect(body).To(ContainSubstring("embedding model unavailable"))
		})
	})

	Describe("DELETE /v1/indexes/:name/documents/:id", func() {
		It("removes the document", func() {
			loadArticles()

			resp, _ := do(server, http.MethodDelete, "/v1/indexes/articles/documents/1", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			_, body := do(server, http.MethodGet, "/v1/indexes/articles", "")
			Expect(body).To(ContainSubstring(`"count":2`))
		})
	})

	Describe("GET /v1/indexes/:name/search", func() {
		BeforeEach(func() {
			loadArticles()
		})

		It("returns ranked results with the default k", func() {
			resp, body := do(server, http.MethodGet, "/v1/indexes/articles/search?query=climate", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out SearchResponse
			Expect(json.Unmarshal([]byte(body), &out)).To(Succeed())
			Expect(out.Strategy).To(Equal(vector.StrategyExhaustive))
			Expect(out.K).To(Equal(2))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].ID).To(Equal("1"))
			Expect(out.Results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
			Expect(out.Results[0].Source.Metadata).To(HaveKeyWithValue("year", BeNumerically("==", 2024)))
			Expect(out.Results[1].ID).To(Equal("2"))
		})

		It("runs approximate queries", func() {
			resp, body := do(server, http.MethodGet, "/v1/indexes/articles/search?query=climate&k=3&strategy=knn&num_candidates=10", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out SearchResponse
			Expect(json.Unmarshal([]byte(body), &out)).To(Succeed())
			Expect(out.Strategy).To(Equal(vector.StrategyANN))
			Expect(out.Count).To(Equal(3))
		})

		It("accepts metric aliases", func() {
			resp, body := do(server, http.MethodGet, "/v1/indexes/articles/search?query=climate&metric=l2", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK), body)

			var out SearchResponse
			Expect(json.Unmarshal([]byte(body), &out)).To(Succeed())
			Expect(out.Results[0].ID).To(Equal("1"))
			Expect(out.Results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
		})

		DescribeTable("returns 400 for invalid parameters",
			func(target, message string) {
				resp, body := do(server, http.MethodGet, target, "")
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(body).To(ContainSubstring(message))
			},
			Entry("missing query", "/v1/indexes/articles/search", "query parameter is required"),
			Entry("non-integer k", "/v1/indexes/articles/search?query=climate&k=abc", "k must be a positive integer"),
			Entry("zero k", "/v1/indexes/articles/search?query=climate&k=0", "k must be a positive integer"),
			Entry("bad num_candidates", "/v1/indexes/articles/search?query=climate&num_candidates=-1", "num_candidates must be a positive integer"),
			Entry("pool smaller than k", "/v1/indexes/articles/search?query=climate&k=5&strategy=ann&num_candidates=2", "invalid query"),
			Entry("unknown strategy", "/v1/indexes/articles/search?query=climate&strategy=fuzzy", "invalid query"),
			Entry("metric override on ann", "/v1/indexes/articles/search?query=climate&strategy=ann&metric=l2_norm", "invalid query"),
			Entry("unknown metric", "/v1/indexes/articles/search?query=climate&metric=manhattan", "invalid query"),
		)

		It("returns 404 for a missing index", func() {
			resp, _ := do(server, http.MethodGet, "/v1/indexes/missing/search?query=climate", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Context("when the store is unreachable", func() {
		BeforeEach(func() {
			server = newTestServer(testutils.NewUnreachableDriver(), embedder)
		})

		It("returns 503", func() {
			resp, body := do(server, http.MethodGet, "/v1/indexes/articles/search?query=climate", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			Expect(body).To(ContainSubstring("vector store unavailable"))

			resp, _ = do(server, http.MethodPut, "/v1/indexes/articles", "")
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})
})

var _ = Describe("statusFor", func() {
	It("maps a missing index to 404 before the store kind", func() {
		Expect(statusFor(vector.IndexNotFound("x"))).To(Equal(fiber.StatusNotFound))
	})

	It("maps unknown errors to 500", func() {
		Expect(statusFor(errors.New("boom"))).To(Equal(fiber.StatusInternalServerError))
		Expect(statusFor(context.Canceled)).To(Equal(fiber.StatusInternalServerError))
	})
})
