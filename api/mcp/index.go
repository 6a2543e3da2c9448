package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/simsearch/pkg/index"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

var (
	indexToolName    = "index_documents"
	indexDescription = "Add or replace text documents in an index so they can be found by the search tool. Documents with an existing id are replaced. Returns how many documents were stored and why any were rejected."
)

// DocumentInput is a document to index.
type DocumentInput struct {
	ID       string            `json:"id,omitempty" jsonschema:"unique document id, generated when empty"`
	Fields   map[string]string `json:"fields" jsonschema:"text fields to embed keyed by field name, e.g. title and content"`
	Metadata map[string]any    `json:"metadata,omitempty" jsonschema:"scalar values returned with search results but not embedded"`
}

// IndexInput represents the input arguments for the index_documents tool.
type IndexInput struct {
	Index     string          `json:"index,omitempty" jsonschema:"the index to add documents to (default: the configured index)"`
	Documents []DocumentInput `json:"documents" jsonschema:"the documents to index"`
}

// IndexOutput represents the output of the index_documents tool.
type IndexOutput struct {
	Index     string          `json:"index"`
	Attempted int             `json:"attempted"`
	Succeeded int             `json:"succeeded"`
	Failed    []index.Failure `json:"failed"`
	IDs       []string        `json:"ids,omitempty"`
}

// handleIndexDocuments processes an index_documents request.
func (s *Server) handleIndexDocuments(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (*mcp.CallToolResult, IndexOutput, error) {
	logger := s.config.Logger

	name, err := s.indexName(input.Index)
	if err != nil {
		return errorResult(err), IndexOutput{}, nil
	}
	if len(input.Documents) == 0 {
		return errorResult(errors.New("documents are required")), IndexOutput{}, nil
	}

	docs := make([]vector.Document, 0, len(input.Documents))
	for _, d := range input.Documents {
		docs = append(docs, vector.Document{
			ID:       d.ID,
			Fields:   d.Fields,
			Metadata: d.Metadata,
		})
	}

	logger.Debug("MCP index request", "index", name, "count", len(docs))

	report, err := s.config.Indexer.IndexBatch(ctx, name, docs)
	if err != nil {
		logger.Error("MCP indexing failed", "index", name, "error", err)
		return errorResult(fmt.Errorf("indexing failed: %w", err)), IndexOutput{}, nil
	}

	return jsonResult(IndexOutput{
		Index:     name,
		Attempted: report.Attempted,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		IDs:       report.IDs,
	})
}
