package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Scenario — предзаданная связка цели и инструкции для повторяемых демо.
type Scenario struct {
	Goal         string `json:"goal"`
	Instructions string `json:"instructions"`
}

// Scenarios — таблица сценариев по имени.
var Scenarios = map[string]Scenario{
	"hackathon-demo": {
		Goal: "Research the top 3 sponsor tools for AI agents at this hackathon. Store each finding in the knowledge graph and then summarize.",
		Instructions: "First request Scoped Access (request_scoped_access) with allowed_domains including api.tavily.com and your graph host. " +
			"Then use tavily_search for 2-3 queries, store findings with graph_store_finding, then graph_query to read back and produce a short summary.",
	},
	"research": {
		Goal: "Research a topic the user provides; store findings in the knowledge graph and summarize.",
		Instructions: "Request Scoped Access if needed, then search with Tavily, store findings in the graph, query and summarize.",
	},
}

// ScenarioTool выдает предзаданный сценарий по имени.
type ScenarioTool struct {
	// Сценарий, если агент не назвал конкретный
	defaultName string
}

func NewScenarioTool(defaultName string) *ScenarioTool {
	return &ScenarioTool{defaultName: defaultName}
}

func (t *ScenarioTool) Name() string { return "set_demo_scenario" }

func (t *ScenarioTool) Description() string {
	return "Set a demo scenario that defines a predefined goal and instructions. " +
		"Use 'hackathon-demo' for the sponsor research demo, or 'research' for generic research."
}

type scenarioArgs struct {
	Name string `json:"name"`
}

type scenarioResult struct {
	Success      bool   `json:"success"`
	Goal         string `json:"goal,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (t *ScenarioTool) Execute(_ context.Context, args json.RawMessage) (any, error) {
	var in scenarioArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	name := in.Name
	if name == "" {
		name = t.defaultName
	}
	sc, ok := Scenarios[name]
	if !ok {
		return scenarioResult{Success: false, Message: fmt.Sprintf("Unknown scenario: %s. Use hackathon-demo or research.", name)}, nil
	}

	return scenarioResult{
		Success:      true,
		Goal:         sc.Goal,
		Instructions: sc.Instructions,
		Message:      fmt.Sprintf("Scenario '%s' loaded. Goal: %s", name, sc.Goal),
	}, nil
}
