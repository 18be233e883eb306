package stream

import (
	"bytes"
	"encoding/json"

	"github.com/xela07ax/agent-watchdog/internal/domain"
)

// Decoder — клиентская сторона NDJSON-транспорта. Принимает байты
// кусками произвольного размера (границы чанков никак не связаны с
// границами строк), буферизует незавершенный хвост между вызовами.
// Нечитаемые строки отбрасываются без остановки потока.
type Decoder struct {
	buf bytes.Buffer
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Push скармливает очередной чанк и возвращает все полностью
// разобранные события из него.
func (d *Decoder) Push(chunk []byte) []domain.ToolEvent {
	d.buf.Write(chunk)

	var events []domain.ToolEvent
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, raw[:idx])
		d.buf.Next(idx + 1)

		if ev, ok := parseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush разбирает незакрытый переводом строки хвост (EOF без \n).
func (d *Decoder) Flush() []domain.ToolEvent {
	line := d.buf.Bytes()
	d.buf.Reset()

	if ev, ok := parseLine(line); ok {
		return []domain.ToolEvent{ev}
	}
	return nil
}

func parseLine(line []byte) (domain.ToolEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return domain.ToolEvent{}, false
	}

	var ev domain.ToolEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
		return domain.ToolEvent{}, false
	}
	return ev, true
}
