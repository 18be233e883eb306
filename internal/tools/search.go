package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xela07ax/agent-watchdog/internal/connectors"
)

// SearchTool — веб-поиск через Tavily. Отсутствие ключа — мягкий
// отказ (success=false), агент продолжает без исследования.
type SearchTool struct {
	client *connectors.TavilyClient
}

func NewSearchTool(client *connectors.TavilyClient) *SearchTool {
	return &SearchTool{client: client}
}

func (t *SearchTool) Name() string { return "tavily_search" }

func (t *SearchTool) Description() string {
	return "Search the web using Tavily. Use this to find real-time information, docs, or research topics. " +
		"Returns titles, URLs, and content snippets."
}

type searchArgs struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResult struct {
	Success bool                      `json:"success"`
	Results []connectors.SearchResult `json:"results"`
	Message string                    `json:"message,omitempty"`
}

func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	results, err := t.client.Search(ctx, in.Query, in.MaxResults, in.SearchDepth)
	if err != nil {
		if errors.Is(err, connectors.ErrNotConfigured) {
			return searchResult{Success: false, Results: []connectors.SearchResult{}, Message: "TAVILY_API_KEY is not set."}, nil
		}
		return searchResult{Success: false, Results: []connectors.SearchResult{}, Message: fmt.Sprintf("Tavily API error: %v", err)}, nil
	}

	return searchResult{Success: true, Results: results}, nil
}
