package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/audit"
	"github.com/xela07ax/agent-watchdog/internal/domain"
	"github.com/xela07ax/agent-watchdog/internal/infra"
	"github.com/xela07ax/agent-watchdog/internal/runtime"
	"github.com/xela07ax/agent-watchdog/internal/stream"
	"github.com/xela07ax/agent-watchdog/internal/tools"
)

// fakeRuntime проигрывает заготовленную ленту сырых событий.
type fakeRuntime struct {
	events []runtime.RawEvent
	runErr error
	// если true — канал закрывается без события finish
	abruptClose bool
}

func (f *fakeRuntime) Run(_ context.Context, _ string) (<-chan runtime.RawEvent, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	ch := make(chan runtime.RawEvent, len(f.events)+1)
	for _, ev := range f.events {
		ch <- ev
	}
	if !f.abruptClose {
		ch <- runtime.RawEvent{Type: runtime.RawFinish}
	}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, rt runtime.Runtime) (*Server, *AbortManager) {
	t.Helper()
	cfg := &infra.Config{}
	cfg.Pulse.AgentID = "agent-x"

	abort := NewAbortManager(nil, zap.NewNop())
	s := NewServer(cfg, zap.NewNop(), rt, NewMetrics(nil), abort, audit.NopRecorder{}, nil)
	return s, abort
}

func doRun(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, []domain.ToolEvent) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	dec := stream.NewDecoder()
	events := dec.Push(rec.Body.Bytes())
	events = append(events, dec.Flush()...)
	return rec, events
}

func TestHandleRun_HappyPath(t *testing.T) {
	rt := &fakeRuntime{events: []runtime.RawEvent{
		{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "working"}},
		{Type: runtime.RawToolCall, Payload: map[string]any{"toolName": "tavily_search", "args": map[string]any{"query": "go"}}},
		{Type: runtime.RawToolResult, Payload: map[string]any{"toolName": "tavily_search", "result": "found it"}},
	}}
	s, _ := newTestServer(t, rt)

	rec, events := doRun(t, s, `{"goal":"research go"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stream.ContentType, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	require.Len(t, events, 4)
	assert.Equal(t, domain.EventText, events[0].Type)
	assert.Equal(t, domain.EventToolCall, events[1].Type)
	assert.Equal(t, domain.EventToolResult, events[2].Type)
	assert.Equal(t, domain.EventDone, events[3].Type)
}

func TestHandleRun_DoneIsAlwaysLastAndSingle(t *testing.T) {
	cases := map[string]runtime.Runtime{
		"happy": &fakeRuntime{events: []runtime.RawEvent{
			{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "ok"}},
		}},
		"abrupt close without finish": &fakeRuntime{abruptClose: true, events: []runtime.RawEvent{
			{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "partial"}},
		}},
		"runtime start failure": &fakeRuntime{runErr: errors.New("engine offline")},
		"upstream error event": &fakeRuntime{events: []runtime.RawEvent{
			{Type: runtime.RawError, Payload: map[string]any{"message": "tool exploded"}},
		}},
	}

	for name, rt := range cases {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestServer(t, rt)
			_, events := doRun(t, s, `{}`)

			require.NotEmpty(t, events)
			assert.Equal(t, domain.EventDone, events[len(events)-1].Type)

			doneCount := 0
			for _, ev := range events {
				if ev.Type == domain.EventDone {
					doneCount++
				}
			}
			assert.Equal(t, 1, doneCount)
		})
	}
}

func TestHandleRun_RuntimeStartFailureEmitsError(t *testing.T) {
	s, _ := newTestServer(t, &fakeRuntime{runErr: errors.New("engine offline")})

	_, events := doRun(t, s, `{}`)

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "engine offline")
	assert.Equal(t, domain.EventDone, events[1].Type)
}

func TestHandleRun_EmptyBodyUsesDefaultGoal(t *testing.T) {
	s, _ := newTestServer(t, &fakeRuntime{events: []runtime.RawEvent{
		{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "hi"}},
	}})

	rec, events := doRun(t, s, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDone, events[1].Type)
}

func TestHandleRun_AbortedAgentRejectedUpfront(t *testing.T) {
	s, abort := newTestServer(t, &fakeRuntime{})
	abort.MarkAborted("rogue-7")

	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Agent-ID", "rogue-7")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "agent_aborted", resp["error"])
}

func TestHandleRun_AbortMidRun(t *testing.T) {
	// Агент уже в стоп-листе, но заголовок X-Agent-ID не передан:
	// middleware пропускает, пайплайн режет запуск на первом событии
	s, abort := newTestServer(t, &fakeRuntime{events: []runtime.RawEvent{
		{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "never delivered"}},
	}})
	abort.MarkAborted("agent-x")

	_, events := doRun(t, s, `{}`)

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "aborted")
	assert.Equal(t, domain.EventDone, events[1].Type)
}

func TestHandleRun_HealthAndIndex(t *testing.T) {
	s, _ := newTestServer(t, &fakeRuntime{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

// localTool — инструмент-заглушка для сквозного прогона через Scripted.
type localTool struct {
	name   string
	result any
}

func (t localTool) Name() string        { return t.name }
func (t localTool) Description() string { return "stub" }
func (t localTool) Execute(context.Context, json.RawMessage) (any, error) {
	return t.result, nil
}

func TestHandleRun_EndToEndWithScriptedRuntime(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(localTool{name: "request_scoped_access", result: domain.ScopedAccessOutcome{
		Status:        domain.StatusApproved,
		SessionHandle: "sh_e2e",
	}})
	registry.Register(localTool{name: "tavily_search", result: map[string]any{
		"success": true,
		"results": []map[string]string{
			{"title": "Go", "url": "https://go.dev", "content": "compiled language"},
		},
	}})
	registry.Register(localTool{name: "graph_store_finding", result: map[string]any{"success": true}})
	registry.Register(localTool{name: "graph_query", result: map[string]any{"success": true}})

	s, _ := newTestServer(t, runtime.NewScripted(registry, zap.NewNop()))
	rec, events := doRun(t, s, `{"goal":"research go"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventDone, events[len(events)-1].Type)

	// Доступ запрашивается первым, дальше исследование и граф
	var calls []string
	var text strings.Builder
	for _, ev := range events {
		switch ev.Type {
		case domain.EventToolCall:
			calls = append(calls, ev.Name)
		case domain.EventText:
			text.WriteString(ev.Delta)
		}
	}
	assert.Equal(t, []string{"request_scoped_access", "tavily_search", "graph_store_finding", "graph_query"}, calls)
	assert.Contains(t, text.String(), "research go")
}

func TestHandleRun_ClientDisconnectStillTerminatesStream(t *testing.T) {
	s, _ := newTestServer(t, &fakeRuntime{events: []runtime.RawEvent{
		{Type: runtime.RawTextDelta, Payload: map[string]any{"text": "never read"}},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // потребитель ушел до первого события

	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString(`{}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	// На нашей стороне поток все равно закрыт терминальным done
	dec := stream.NewDecoder()
	events := dec.Push(rec.Body.Bytes())
	events = append(events, dec.Flush()...)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventDone, events[len(events)-1].Type)
}
