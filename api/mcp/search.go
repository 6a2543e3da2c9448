package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/simsearch/pkg/search"
	"github.com/papercomputeco/simsearch/pkg/vector"
)

var (
	searchToolName    = "search"
	searchDescription = "Semantic similarity search over an index of text documents. Returns the most similar documents to the query text, ranked by score, with their text fields and metadata."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query         string `json:"query" jsonschema:"the search query text"`
	Index         string `json:"index,omitempty" jsonschema:"the index to search (default: the configured index)"`
	K             int    `json:"k,omitempty" jsonschema:"number of results to return"`
	Strategy      string `json:"strategy,omitempty" jsonschema:"exhaustive for exact results or ann for approximate nearest neighbor search"`
	NumCandidates int    `json:"num_candidates,omitempty" jsonschema:"candidate pool size for ann search, at least k"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string                `json:"query"`
	Index   string                `json:"index"`
	Results []vector.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	name, err := s.indexName(input.Index)
	if err != nil {
		return errorResult(err), SearchOutput{}, nil
	}

	k := input.K
	if k <= 0 {
		k = s.config.DefaultTopK
	}
	strategy := s.config.DefaultStrategy
	if input.Strategy != "" {
		strategy = vector.Strategy(input.Strategy)
	}

	logger.Debug("MCP search request",
		"index", name,
		"query", input.Query,
		"k", k,
		"strategy", strategy,
	)

	results, err := s.config.Engine.Search(ctx, name, input.Query, k, search.Options{
		Strategy:      strategy,
		NumCandidates: input.NumCandidates,
	})
	if err != nil {
		logger.Error("MCP search failed", "index", name, "error", err)
		return errorResult(fmt.Errorf("search failed: %w", err)), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Index:   name,
		Results: results,
		Count:   len(results),
	}
	return jsonResult(output)
}

// errorResult reports a tool failure to the client.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}

// jsonResult returns the structured output along with its JSON
// serialization in a TextContent block for clients without structured
// content support.
func jsonResult[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return errorResult(fmt.Errorf("failed to serialize results: %w", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
