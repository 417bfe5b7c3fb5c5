// Package search provides shared search types and logic for semantic search
// over the live corpus version. It is used by both the REST API endpoint and
// the MCP server tool.
package search

import (
	"context"
	"log/slog"

	"github.com/inkwellco/corpus/pkg/retrieve"
	"github.com/inkwellco/corpus/pkg/vector"
)

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	Seq        int     `json:"seq"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Search retrieves the topK chunks most similar to the query text from the
// live version.
func Search(
	ctx context.Context,
	query string,
	topK int,
	retriever *retrieve.Retriever,
	logger *slog.Logger,
) (*SearchOutput, error) {
	logger.Debug("search request",
		"query", query,
		"top_k", topK,
	)

	results, err := retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		searchResults = append(searchResults, BuildSearchResult(r))
	}

	return &SearchOutput{
		Query:   query,
		Results: searchResults,
		Count:   len(searchResults),
	}, nil
}

// BuildSearchResult converts a vector query result into a SearchResult.
func BuildSearchResult(r vector.Result) SearchResult {
	return SearchResult{
		ChunkID:    r.ID,
		DocumentID: r.DocumentID,
		Source:     r.Source,
		Seq:        r.Seq,
		Start:      r.Start,
		End:        r.End,
		Score:      r.Score,
		Text:       r.Text,
	}
}
