package domain

import "encoding/json"

// EventType — дискриминатор строки в NDJSON-транспорте прогресса.
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// ResultPreviewLimit — превью результата инструмента обрезается
// до 200 символов. Обрезка намеренно с потерями: это display-only.
const ResultPreviewLimit = 200

// ToolEvent — одна единица наблюдаемого прогресса исполнения.
// Внутри одного запуска события строго упорядочены; done ровно один
// и всегда последний.
type ToolEvent struct {
	Type    EventType       `json:"type"`
	Delta   string          `json:"delta,omitempty"`   // text: инкрементальный фрагмент ответа модели
	Name    string          `json:"name,omitempty"`    // tool_call / tool_result
	Args    json.RawMessage `json:"args,omitempty"`    // tool_call: непрозрачный payload
	Result  string          `json:"result,omitempty"`  // tool_result: уже обрезанное превью
	Message string          `json:"message,omitempty"` // error
}

func TextEvent(delta string) ToolEvent {
	return ToolEvent{Type: EventText, Delta: delta}
}

func ToolCallEvent(name string, args json.RawMessage) ToolEvent {
	return ToolEvent{Type: EventToolCall, Name: name, Args: args}
}

func ToolResultEvent(name, preview string) ToolEvent {
	return ToolEvent{Type: EventToolResult, Name: name, Result: preview}
}

func ErrorEvent(message string) ToolEvent {
	return ToolEvent{Type: EventError, Message: message}
}

func DoneEvent() ToolEvent {
	return ToolEvent{Type: EventDone}
}

// TruncateRunes обрезает строку до limit символов (рун, не байт),
// чтобы не разрезать мультибайтовый символ посередине.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
