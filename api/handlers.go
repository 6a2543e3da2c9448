package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/simsearch/pkg/search"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

// EnsureIndexRequest is the body of PUT /v1/indexes/:name. Zero values fall
// back to the server's default schema.
type EnsureIndexRequest struct {
	Dimensions int      `json:"dimensions,omitempty"`
	Metric     string   `json:"metric,omitempty"`
	TextFields []string `json:"text_fields,omitempty"`
}

// IndexStatus describes an index.
type IndexStatus struct {
	Name   string         `json:"name"`
	Exists bool           `json:"exists"`
	Count  int            `json:"count"`
	Schema *vector.Schema `json:"schema,omitempty"`
}

// IndexDocumentsRequest is the body of POST /v1/indexes/:name/documents.
type IndexDocumentsRequest struct {
	Documents []vector.Document `json:"documents"`
}

// SearchResponse is returned by GET /v1/indexes/:name/search.
type SearchResponse struct {
	Index    string                `json:"index"`
	Query    string                `json:"query"`
	Strategy vector.Strategy       `json:"strategy"`
	K        int                   `json:"k"`
	Results  []vector.SearchResult `json:"results"`
	Count    int                   `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleEnsureIndex creates the index, destroying any existing one.
func (s *Server) handleEnsureIndex(c *fiber.Ctx) error {
	var req EnsureIndexRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body: "+err.Error())
		}
	}

	schema := vector.Schema{
		Name:       c.Params("name"),
		Dimensions: s.config.DefaultSchema.Dimensions,
		Metric:     s.config.DefaultSchema.Metric,
		TextFields: s.config.DefaultSchema.TextFields,
	}
	if req.Dimensions != 0 {
		schema.Dimensions = req.Dimensions
	}
	if req.Metric != "" {
		metric, err := vector.ParseMetric(req.Metric)
		if err != nil {
			return s.fail(c, err)
		}
		schema.Metric = metric
	}
	if req.TextFields != nil {
		schema.TextFields = req.TextFields
	}

	if err := s.manager.EnsureIndex(c.Context(), schema); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(IndexStatus{Name: schema.Name, Exists: true, Schema: &schema})
}

// handleDescribeIndex reports whether the index exists, its document count
// and schema.
func (s *Server) handleDescribeIndex(c *fiber.Ctx) error {
	ctx := c.Context()
	name := c.Params("name")

	exists, err := s.manager.IndexExists(ctx, name)
	if err != nil {
		return s.fail(c, err)
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(IndexStatus{Name: name})
	}

	schema, err := s.manager.Schema(ctx, name)
	if err != nil {
		return s.fail(c, err)
	}
	count, err := s.manager.Count(ctx, name)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(IndexStatus{Name: name, Exists: true, Count: count, Schema: &schema})
}

// handleDeleteIndex drops the index.
func (s *Server) handleDeleteIndex(c *fiber.Ctx) error {
	if err := s.manager.DeleteIndex(c.Context(), c.Params("name")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleIndexDocuments bulk-loads documents. Partial failures are reported
// in the body of a 200 response.
func (s *Server) handleIndexDocuments(c *fiber.Ctx) error {
	var req IndexDocumentsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	if len(req.Documents) == 0 {
		return badRequest(c, "documents are required")
	}

	report, err := s.indexer.IndexBatch(c.Context(), c.Params("name"), req.Documents)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(report)
}

// handleDeleteDocument removes a single document.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	if err := s.indexer.Delete(c.Context(), c.Params("name"), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSearch handles GET /v1/indexes/:name/search requests.
// Query parameters:
//   - query (required): the search query text
//   - k (optional): number of results to return
//   - strategy (optional): exhaustive or ann
//   - num_candidates (optional): ANN candidate pool size
//   - metric (optional): metric override for exhaustive search, aliases accepted
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return badRequest(c, "query parameter is required")
	}

	k := s.config.DefaultTopK
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "k must be a positive integer")
		}
		k = parsed
	}

	opts := search.Options{
		Strategy: s.config.DefaultStrategy,
		Metric:   vector.Metric(c.Query("metric")),
	}
	if raw := c.Query("strategy"); raw != "" {
		opts.Strategy = vector.Strategy(raw)
	}
	if raw := c.Query("num_candidates"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "num_candidates must be a positive integer")
		}
		opts.NumCandidates = parsed
	}

	name := c.Params("name")
	results, err := s.engine.Search(c.Context(), name, query, k, opts)
	if err != nil {
		return s.fail(c, err)
	}

	strategy := vector.StrategyExhaustive
	if opts.Strategy != "" {
		strategy, _ = vector.ParseStrategy(string(opts.Strategy))
	}

	return c.JSON(SearchResponse{
		Index:    name,
		Query:    query,
		Strategy: strategy,
		K:        k,
		Results:  results,
		Count:    len(results),
	})
}
