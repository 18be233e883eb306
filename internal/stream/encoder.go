package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xela07ax/agent-watchdog/internal/domain"
)

// ContentType NDJSON-транспорта прогресса.
const ContentType = "application/x-ndjson"

var ErrStreamClosed = errors.New("event stream already terminated")

// Encoder пишет события как newline-delimited JSON с flush после каждой
// строки (никакого батчинга: медленный потребитель задерживает эмиссию,
// но не переупорядочивает и не теряет события).
//
// Терминальный done идет ТОЛЬКО через Close. Пайплайн обязан вызвать
// Close на любом пути выхода (обычно через defer) — тогда done ровно
// один и всегда последний, как бы ни завершился апстрим.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Write сериализует одно событие. После Close любой Write — ErrStreamClosed.
func (e *Encoder) Write(ev domain.ToolEvent) error {
	if e.closed {
		return ErrStreamClosed
	}
	if ev.Type == domain.EventDone {
		// done — прерогатива Close: ручная запись ломает инвариант
		return fmt.Errorf("done must be emitted via Close: %w", ErrStreamClosed)
	}
	return e.writeLine(ev)
}

// Close завершает поток: при runErr != nil сначала одна error-строка,
// затем ровно одна done-строка. Идемпотентен.
func (e *Encoder) Close(runErr error) error {
	if e.closed {
		return nil
	}
	e.closed = true

	if runErr != nil {
		// Сбой записи error-строки не мешает попытке дописать done
		_ = e.writeLine(domain.ErrorEvent(runErr.Error()))
	}
	return e.writeLine(domain.DoneEvent())
}

func (e *Encoder) writeLine(ev domain.ToolEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	raw = append(raw, '\n')

	if _, err := e.w.Write(raw); err != nil {
		return fmt.Errorf("stream write: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
