package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/domain"
	"github.com/xela07ax/agent-watchdog/internal/tools"
)

// Scripted — детерминированный оркестратор для демо и тестов:
// вместо модели задачу ведет сценарий, но инструменты дергаются
// по-настоящему через реестр. Воспроизводит форму потока реального
// апстрима: text-delta кусками, tool-call/tool-result, finish.
type Scripted struct {
	registry *tools.Registry
	logger   *zap.Logger
}

func NewScripted(registry *tools.Registry, logger *zap.Logger) *Scripted {
	return &Scripted{
		registry: registry,
		logger:   logger.Named("scripted-runtime"),
	}
}

func (s *Scripted) Run(ctx context.Context, goal string) (<-chan RawEvent, error) {
	if strings.TrimSpace(goal) == "" {
		goal = "Hello, what can you do?"
	}

	ch := make(chan RawEvent)
	go s.walk(ctx, goal, ch)
	return ch, nil
}

func (s *Scripted) walk(ctx context.Context, goal string, ch chan<- RawEvent) {
	defer close(ch)

	emit := func(ev RawEvent) bool {
		select {
		case <-ctx.Done():
			return false
		case ch <- ev:
			return true
		}
	}

	if !s.emitText(ctx, ch, fmt.Sprintf("Understanding the task: %s\n\nRequesting scoped access before touching external APIs.\n", goal)) {
		return
	}

	// 1. Scoped Access — всегда первым, до любых внешних вызовов
	outcome, ok := s.callTool(ctx, ch, "request_scoped_access", map[string]any{
		"summary":             "Research access for coding task",
		"description":         fmt.Sprintf("The agent needs web search to research: %s", goal),
		"allowed_domains":     []any{"api.tavily.com"},
		"poll_until_approved": true,
	})
	if !ok {
		return
	}

	granted := false
	if o, isOutcome := outcome.(domain.ScopedAccessOutcome); isOutcome {
		granted = o.Status == domain.StatusApproved
	}

	if !granted {
		if !s.emitText(ctx, ch, "\nScoped access was not granted, so I will answer from prior knowledge without live research.\n") {
			return
		}
		emit(RawEvent{Type: RawFinish})
		return
	}

	if !s.emitText(ctx, ch, "\nAccess granted. Researching...\n") {
		return
	}

	// 2. Исследование
	searchRes, ok := s.callTool(ctx, ch, "tavily_search", map[string]any{
		"query":       goal,
		"max_results": 5,
	})
	if !ok {
		return
	}

	// 3. Фиксируем первую находку в графе знаний (best effort)
	if finding := firstFinding(goal, searchRes); finding != nil {
		if _, ok := s.callTool(ctx, ch, "graph_store_finding", finding); !ok {
			return
		}
		if _, ok := s.callTool(ctx, ch, "graph_query", map[string]any{"topic": goal}); !ok {
			return
		}
	}

	if !s.emitText(ctx, ch, "\nResearch complete. Summarizing findings and writing the result.\n") {
		return
	}

	emit(RawEvent{Type: RawFinish})
}

// emitText шлет текст инкрементальными фрагментами, как это делает
// стриминг модели. Конкатенация фрагментов равна исходной строке.
func (s *Scripted) emitText(ctx context.Context, ch chan<- RawEvent, text string) bool {
	const chunk = 24
	runes := []rune(text)
	for i := 0; i < len(runes); i += chunk {
		end := i + chunk
		if end > len(runes) {
			end = len(runes)
		}
		ev := RawEvent{
			Type:    RawTextDelta,
			Payload: map[string]any{"text": string(runes[i:end])},
		}
		select {
		case <-ctx.Done():
			return false
		case ch <- ev:
		}
	}
	return true
}

// callTool эмитит tool-call, реально исполняет инструмент и эмитит
// tool-result. ok=false — контекст отменен, поток сворачиваем.
func (s *Scripted) callTool(ctx context.Context, ch chan<- RawEvent, name string, args map[string]any) (any, bool) {
	call := RawEvent{
		Type:    RawToolCall,
		Payload: map[string]any{"toolName": name, "args": args},
	}
	select {
	case <-ctx.Done():
		return nil, false
	case ch <- call:
	}

	rawArgs, _ := json.Marshal(args)
	result, err := s.registry.Execute(ctx, name, rawArgs)
	if err != nil {
		s.logger.Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		ev := RawEvent{
			Type:    RawError,
			Payload: map[string]any{"message": fmt.Sprintf("tool %s failed: %v", name, err)},
		}
		select {
		case <-ctx.Done():
			return nil, false
		case ch <- ev:
		}
		return nil, true
	}

	res := RawEvent{
		Type:    RawToolResult,
		Payload: map[string]any{"toolName": name, "result": result},
	}
	select {
	case <-ctx.Done():
		return nil, false
	case ch <- res:
	}
	return result, true
}

// firstFinding достает первый результат поиска для записи в граф.
func firstFinding(topic string, searchRes any) map[string]any {
	raw, err := json.Marshal(searchRes)
	if err != nil {
		return nil
	}
	var parsed struct {
		Success bool `json:"success"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || !parsed.Success || len(parsed.Results) == 0 {
		return nil
	}
	r := parsed.Results[0]
	return map[string]any{
		"topic":        topic,
		"finding":      r.Content,
		"source_url":   r.URL,
		"source_title": r.Title,
	}
}
