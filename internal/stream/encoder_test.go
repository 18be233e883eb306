package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/agent-watchdog/internal/domain"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []domain.ToolEvent {
	t.Helper()
	var events []domain.ToolEvent
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		var ev domain.ToolEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	return events
}

func TestEncoder_WritesNDJSONLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Write(domain.TextEvent("hi")))
	require.NoError(t, enc.Write(domain.ToolCallEvent("tavily_search", json.RawMessage(`{"q":1}`))))
	require.NoError(t, enc.Close(nil))

	events := decodeLines(t, &buf)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventText, events[0].Type)
	assert.Equal(t, domain.EventToolCall, events[1].Type)
	assert.Equal(t, domain.EventDone, events[2].Type)
}

func TestEncoder_CloseWithErrorEmitsErrorThenDone(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Close(errors.New("runtime exploded")))

	events := decodeLines(t, &buf)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Equal(t, "runtime exploded", events[0].Message)
	assert.Equal(t, domain.EventDone, events[1].Type)
}

func TestEncoder_CloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Close(nil))
	require.NoError(t, enc.Close(errors.New("late error")))
	require.NoError(t, enc.Close(nil))

	events := decodeLines(t, &buf)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDone, events[0].Type)
}

func TestEncoder_RejectsManualDone(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	err := enc.Write(domain.DoneEvent())
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Zero(t, buf.Len())
}

func TestEncoder_WriteAfterClose(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Close(nil))
	assert.ErrorIs(t, enc.Write(domain.TextEvent("late")), ErrStreamClosed)

	// done остался последним и единственным
	events := decodeLines(t, &buf)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDone, events[0].Type)
}

// failWriter падает после заданного числа успешных записей.
type failWriter struct {
	ok  int
	buf bytes.Buffer
}

func (w *failWriter) Write(p []byte) (int, error) {
	if w.ok <= 0 {
		return 0, errors.New("broken pipe")
	}
	w.ok--
	return w.buf.Write(p)
}

func TestEncoder_ErrorLineFailureStillAttemptsDone(t *testing.T) {
	// Первая запись (error-строка) падает, done все равно пробуем
	w := &failWriter{ok: 0}
	enc := NewEncoder(w)

	err := enc.Close(errors.New("boom"))
	assert.Error(t, err) // done тоже не долетел — транспорт мертв

	// Поток закрыт: дальнейшие записи отвергаются без паники
	assert.ErrorIs(t, enc.Write(domain.TextEvent("x")), ErrStreamClosed)
}
