package mcp_test

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/api/mcp"
	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/logger"
	"github.com/papercomputeco/simsearch/pkg/search"
	testutils "github.com/papercomputeco/simsearch/pkg/utils/test"
	"github.com/papercomputeco/simsearch/pkg/vector"
	"github.com/papercomputeco/simsearch/pkg/vector/memory"
)

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		manager  *index.Manager
		indexer  *index.Indexer
		engine   *search.Engine
		server   *mcp.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder(4)
		manager = index.NewManager(memory.NewDriver(logger.Nop()), logger.Nop())
		indexer = index.NewIndexer(manager, embedder, logger.Nop())
		engine = search.NewEngine(manager, embedder, logger.Nop())

		Expect(manager.EnsureIndex(ctx, vector.Schema{
			Name:       "notes",
			Dimensions: 4,
			Metric:     vector.MetricCosine,
			TextFields: []string{"title", "content"},
		})).To(Succeed())

		var err error
		server, err = mcp.NewServer(mcp.Config{
			Engine:       engine,
			Indexer:      indexer,
			DefaultIndex: "notes",
			Logger:       logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the engine is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Indexer: indexer, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("search engine is required")))
		})

		It("returns an error when the indexer is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Engine: engine, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("indexer is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Engine: engine, Indexer: indexer})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server in noop mode", func() {
			s, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools over a client session", func() {
		var session *sdkmcp.ClientSession

		BeforeEach(func() {
			clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()

			serverSession, err := server.Connect(ctx, serverTransport)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { _ = serverSession.Close() })

			client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0"}, nil)
			session, err = client.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { _ = session.Close() })
		})

		callTool := func(name string, args map[string]any) *sdkmcp.CallToolResult {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
			Expect(err).NotTo(HaveOccurred())
			return res
		}

		text := func(res *sdkmcp.CallToolResult) string {
			Expect(res.Content).NotTo(BeEmpty())
			tc, ok := res.Content[0].(*sdkmcp.TextContent)
			Expect(ok).To(BeTrue())
			return tc.Text
		}

		It("lists the search and index_documents tools", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			var names []string
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("search", "index_documents"))
		})

		It("indexes documents and finds them", func() {
			embedder.Embeddings["Glaciers\nIce is melting."] = []float32{1, 0, 0, 0}
			embedder.Embeddings["Football\nA late goal."] = []float32{0, 1, 0, 0}
			embedder.Embeddings["climate"] = []float32{1, 0, 0, 0}

			res := callTool("index_documents", map[string]any{
				"documents": []map[string]any{
					{"id": "g", "fields": map[string]string{"title": "Glaciers", "content": "Ice is melting."}},
					{"id": "f", "fields": map[string]string{"title": "Football", "content": "A late goal."}, "metadata": map[string]any{"year": 2024}},
					{"id": "bad", "fields": map[string]string{"author": "x"}},
				},
			})
			Expect(res.IsError).To(BeFalse())

			var indexed mcp.IndexOutput
			Expect(json.Unmarshal([]byte(text(res)), &indexed)).To(Succeed())
			Expect(indexed.Index).To(Equal("notes"))
			Expect(indexed.Attempted).To(Equal(3))
			Expect(indexed.Succeeded).To(Equal(2))
			Expect(indexed.Failed).To(HaveLen(1))
			Expect(indexed.Failed[0].ID).To(Equal("bad"))

			res = callTool("search", map[string]any{"query": "climate", "k": 1})
			Expect(res.IsError).To(BeFalse())

			var found mcp.SearchOutput
			Expect(json.Unmarshal([]byte(text(res)), &found)).To(Succeed())
			Expect(found.Count).To(Equal(1))
			Expect(found.Results[0].ID).To(Equal("g"))
			Expect(found.Results[0].Source.Fields).To(HaveKeyWithValue("title", "Glaciers"))
		})

		It("reports search errors as tool errors", func() {
			res := callTool("search", map[string]any{"query": "climate", "index": "missing"})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("index not found"))
		})

		It("reports invalid parameters as tool errors", func() {
			res := callTool("search", map[string]any{"query": "climate", "strategy": "fuzzy"})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("invalid query"))
		})

		It("rejects an empty document list", func() {
			res := callTool("index_documents", map[string]any{"documents": []any{}})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("documents are required"))
		})
	})
})
