package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/agent-watchdog/internal/domain"
	"github.com/xela07ax/agent-watchdog/internal/runtime"
)

func TestNormalize_TextDelta(t *testing.T) {
	n := NewNormalizer()

	ev, finished := n.Normalize(runtime.RawEvent{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "hello"}})
	require.NotNil(t, ev)
	assert.False(t, finished)
	assert.Equal(t, domain.EventText, ev.Type)
	assert.Equal(t, "hello", ev.Delta)
}

func TestNormalize_EmptyTextDropped(t *testing.T) {
	n := NewNormalizer()

	ev, finished := n.Normalize(runtime.RawEvent{Type: runtime.RawTextDelta, Payload: map[string]any{"text": ""}})
	assert.Nil(t, ev)
	assert.False(t, finished)
}

func TestNormalize_ToolCallNameFallback(t *testing.T) {
	n := NewNormalizer()

	ev, _ := n.Normalize(runtime.RawEvent{Type: runtime.RawToolCall, Payload: map[string]any{
		"toolName": "tavily_search",
		"args":     map[string]any{"query": "go"},
	}})
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventToolCall, ev.Type)
	assert.Equal(t, "tavily_search", ev.Name)
	assert.JSONEq(t, `{"query":"go"}`, string(ev.Args))

	// toolName отсутствует — берем общее поле name
	ev, _ = n.Normalize(runtime.RawEvent{Type: runtime.RawToolCall, Payload: map[string]any{"name": "graph_query"}})
	require.NotNil(t, ev)
	assert.Equal(t, "graph_query", ev.Name)

	// нет ни того ни другого
	ev, _ = n.Normalize(runtime.RawEvent{Type: runtime.RawToolCall, Payload: map[string]any{}})
	require.NotNil(t, ev)
	assert.Equal(t, "tool", ev.Name)
}

func TestNormalize_ResultPreview(t *testing.T) {
	n := NewNormalizer()

	// Строка — как есть
	ev, _ := n.Normalize(runtime.RawEvent{Type: runtime.RawToolResult, Payload: map[string]any{
		"toolName": "t", "result": "plain text",
	}})
	require.NotNil(t, ev)
	assert.Equal(t, "plain text", ev.Result)

	// nil — "{}"
	ev, _ = n.Normalize(runtime.RawEvent{Type: runtime.RawToolResult, Payload: map[string]any{"toolName": "t"}})
	require.NotNil(t, ev)
	assert.Equal(t, "{}", ev.Result)

	// Структура — JSON, обрезанный до 200 символов
	big := map[string]any{"data": strings.Repeat("x", 500)}
	ev, _ = n.Normalize(runtime.RawEvent{Type: runtime.RawToolResult, Payload: map[string]any{"toolName": "t", "result": big}})
	require.NotNil(t, ev)
	assert.Len(t, ev.Result, domain.ResultPreviewLimit)
	assert.True(t, strings.HasPrefix(ev.Result, `{"data":"xxx`))
}

func TestNormalize_LongStringResultTruncated(t *testing.T) {
	n := NewNormalizer()

	ev, _ := n.Normalize(runtime.RawEvent{Type: runtime.RawToolResult, Payload: map[string]any{
		"toolName": "t", "result": strings.Repeat("a", 300),
	}})
	require.NotNil(t, ev)
	assert.Len(t, ev.Result, domain.ResultPreviewLimit)
}

func TestNormalize_ErrorDefaultMessage(t *testing.T) {
	n := NewNormalizer()

	ev, finished := n.Normalize(runtime.RawEvent{Type: runtime.RawError, Payload: map[string]any{}})
	require.NotNil(t, ev)
	assert.False(t, finished)
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "upstream execution error", ev.Message)
}

func TestNormalize_FinishNeverEmitsDone(t *testing.T) {
	n := NewNormalizer()

	ev, finished := n.Normalize(runtime.RawEvent{Type: runtime.RawFinish})
	assert.Nil(t, ev)
	assert.True(t, finished)

	// После finish все игнорируется
	ev, finished = n.Normalize(runtime.RawEvent{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "late"}})
	assert.Nil(t, ev)
	assert.True(t, finished)
}

func TestNormalize_UnknownTypeDropped(t *testing.T) {
	n := NewNormalizer()

	ev, finished := n.Normalize(runtime.RawEvent{Type: "step-start", Payload: map[string]any{}})
	assert.Nil(t, ev)
	assert.False(t, finished)
}
