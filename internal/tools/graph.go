package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xela07ax/agent-watchdog/internal/connectors"
)

// GraphStoreTool сохраняет находку исследования в граф знаний.
type GraphStoreTool struct {
	client *connectors.GraphClient
}

func NewGraphStoreTool(client *connectors.GraphClient) *GraphStoreTool {
	return &GraphStoreTool{client: client}
}

func (t *GraphStoreTool) Name() string { return "graph_store_finding" }

func (t *GraphStoreTool) Description() string {
	return "Store a research finding in the knowledge graph. Creates or merges nodes: Topic, Finding, and optional Source. " +
		"Use after search to persist what you learned."
}

type storeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (t *GraphStoreTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in connectors.Finding
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if err := t.client.StoreFinding(ctx, in); err != nil {
		if errors.Is(err, connectors.ErrNotConfigured) {
			return storeResult{Success: false, Message: "Knowledge graph not configured (graph.uri, graph.password)."}, nil
		}
		return storeResult{Success: false, Message: fmt.Sprintf("Graph error: %v", err)}, nil
	}

	return storeResult{Success: true, Message: "Stored finding in the knowledge graph."}, nil
}

// GraphQueryTool читает сохраненные находки обратно.
type GraphQueryTool struct {
	client *connectors.GraphClient
}

func NewGraphQueryTool(client *connectors.GraphClient) *GraphQueryTool {
	return &GraphQueryTool{client: client}
}

func (t *GraphQueryTool) Name() string { return "graph_query" }

func (t *GraphQueryTool) Description() string {
	return "Query the knowledge graph for topics and findings. Use to summarize what was stored after research."
}

type queryArgs struct {
	Topic string `json:"topic,omitempty"`
	Limit int    `json:"limit"`
}

type queryResult struct {
	Success bool                       `json:"success"`
	Topics  []connectors.TopicFindings `json:"topics"`
	Message string                     `json:"message,omitempty"`
}

func (t *GraphQueryTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in queryArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	topics, err := t.client.Query(ctx, in.Topic, in.Limit)
	if err != nil {
		if errors.Is(err, connectors.ErrNotConfigured) {
			return queryResult{Success: false, Topics: []connectors.TopicFindings{}, Message: "Knowledge graph not configured."}, nil
		}
		return queryResult{Success: false, Topics: []connectors.TopicFindings{}, Message: fmt.Sprintf("Graph error: %v", err)}, nil
	}
	if topics == nil {
		topics = []connectors.TopicFindings{}
	}

	return queryResult{Success: true, Topics: topics}, nil
}
