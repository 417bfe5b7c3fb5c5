package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/inkwellco/corpus/api/search"
	"github.com/inkwellco/corpus/pkg/retrieve"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the indexed document corpus using semantic similarity. Returns the most relevant chunks for the query text, including source file, offsets, and similarity score."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant chunks"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// handleSearch processes a search tool call.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, apisearch.SearchOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = retrieve.DefaultTopK
	}

	logger.Debug("MCP search request",
		"query", input.Query,
		"top_k", topK,
	)

	output, err := apisearch.Search(ctx, input.Query, topK, s.config.Retriever, logger)
	if err != nil {
		if errors.Is(err, retrieve.ErrRetrievalUnavailable) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: "No live corpus version: ingest and activate a version first."},
				},
			}, apisearch.SearchOutput{}, nil
		}

		logger.Error("search tool failed", "error", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Search failed: %v", err)},
			},
		}, apisearch.SearchOutput{}, nil
	}

	payload, err := json.Marshal(output)
	if err != nil {
		return nil, apisearch.SearchOutput{}, fmt.Errorf("marshaling search output: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(payload)},
		},
	}, *output, nil
}
