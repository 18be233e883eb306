// Package runtime описывает границу с внешним оркестратором модели.
// Watchdog не строит промпты и не выбирает инструменты — он потребляет
// сырой поток событий исполнения и транслирует его наружу.
package runtime

import "context"

// Типы сырых событий, которые отдает оркестратор. Набор открытый:
// всё, что нормализатор не распознал, молча отбрасывается.
const (
	RawTextDelta  = "text-delta"
	RawToolCall   = "tool-call"
	RawToolResult = "tool-result"
	RawError      = "error"
	RawFinish     = "finish"
)

// RawEvent — framework-shaped событие: слабо типизированный payload
// с запасными полями (toolName/name и т.п.), как его видит апстрим.
type RawEvent struct {
	Type    string
	Payload map[string]any
}

// Runtime — один запуск оркестрации на вызов. Канал закрывается,
// когда апстрим закончил (штатно или оборвавшись); finish-событие
// при аварийном обрыве может так и не прийти.
type Runtime interface {
	Run(ctx context.Context, goal string) (<-chan RawEvent, error)
}
