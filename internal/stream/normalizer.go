package stream

import (
	"encoding/json"
	"fmt"

	"github.com/xela07ax/agent-watchdog/internal/domain"
	"github.com/xela07ax/agent-watchdog/internal/runtime"
)

// Normalizer — чистое отображение сырых событий оркестратора в
// канонический набор ToolEvent. На одно сырое событие — ноль или одно
// каноническое. Done нормализатор не порождает никогда: его добавляет
// энкодер при закрытии, иначе невозможно гарантировать ровно-один-done
// при аварийном обрыве апстрима.
type Normalizer struct {
	finished bool
}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize возвращает (событие, finished). nil-событие при finished=false
// означает "распознано, но не транслируем" либо неизвестную форму —
// обе молча пропускаются. После finish любые события игнорируются.
func (n *Normalizer) Normalize(raw runtime.RawEvent) (*domain.ToolEvent, bool) {
	if n.finished {
		return nil, true
	}

	switch raw.Type {
	case runtime.RawTextDelta:
		text, _ := raw.Payload["text"].(string)
		if text == "" {
			return nil, false
		}
		ev := domain.TextEvent(text)
		return &ev, false

	case runtime.RawToolCall:
		ev := domain.ToolCallEvent(toolName(raw.Payload), marshalArgs(raw.Payload["args"]))
		return &ev, false

	case runtime.RawToolResult:
		ev := domain.ToolResultEvent(toolName(raw.Payload), resultPreview(raw.Payload["result"]))
		return &ev, false

	case runtime.RawError:
		msg, _ := raw.Payload["message"].(string)
		if msg == "" {
			msg = "upstream execution error"
		}
		ev := domain.ErrorEvent(msg)
		return &ev, false

	case runtime.RawFinish:
		n.finished = true
		return nil, true

	default:
		// Неизвестная форма — пропускаем, не ломая поток
		return nil, false
	}
}

// toolName: явное имя инструмента, затем общее поле name, затем "tool".
func toolName(payload map[string]any) string {
	if s, ok := payload["toolName"].(string); ok && s != "" {
		return s
	}
	if s, ok := payload["name"].(string); ok && s != "" {
		return s
	}
	return "tool"
}

func marshalArgs(args any) json.RawMessage {
	if args == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil
	}
	return raw
}

// resultPreview: текстовый результат берем как есть, структурный —
// сериализуем; в обоих случаях первые 200 символов.
func resultPreview(result any) string {
	switch v := result.(type) {
	case string:
		return domain.TruncateRunes(v, domain.ResultPreviewLimit)
	case nil:
		return "{}"
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return domain.TruncateRunes(fmt.Sprintf("%v", v), domain.ResultPreviewLimit)
		}
		return domain.TruncateRunes(string(raw), domain.ResultPreviewLimit)
	}
}
