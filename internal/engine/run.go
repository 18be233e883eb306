package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/audit"
	"github.com/xela07ax/agent-watchdog/internal/infra"
	"github.com/xela07ax/agent-watchdog/internal/stream"
)

const defaultGoal = "Hello, what can you do?"

type runRequest struct {
	Goal string `json:"goal"`
}

// handleRun — сердце watchdog. Превращает запуск агента в NDJSON-поток
// канонических событий. Инвариант: клиент ВСЕГДА получает ровно одно
// событие done, и оно всегда последнее — при штатном завершении, при
// ошибке апстрима, при панике и при обрыве со стороны рантайма.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, `{"error": "streaming_unsupported"}`, http.StatusInternalServerError)
		return
	}

	var req runRequest
	// Пустое тело — валидный запрос со сценарной целью по умолчанию
	_ = json.NewDecoder(r.Body).Decode(&req)
	goal := req.Goal
	if goal == "" {
		goal = defaultGoal
	}

	agentID := r.Header.Get("X-Agent-ID")
	if agentID == "" {
		agentID = s.cfg.Pulse.AgentID
	}

	traceID := infra.TraceIDFrom(r.Context())
	s.metrics.RunsTotal.WithLabelValues(agentID).Inc()
	s.logger.Info("run started",
		zap.String("trace_id", traceID),
		zap.String("agent_id", agentID),
	)

	// Заголовки до первого байта: дальше только chunked-поток
	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	enc := stream.NewEncoder(w)

	var runErr error
	status := "completed"
	eventCount := 0

	// Порядок важен: recover (ниже) выполнится РАНЬШЕ и успеет
	// превратить панику в runErr до закрытия потока.
	defer func() {
		if err := enc.Close(runErr); err != nil {
			s.metrics.StreamWriteErrors.Inc()
			s.logger.Warn("failed to finalize stream", zap.String("trace_id", traceID), zap.Error(err))
		}
		s.metrics.RunDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		s.trail.Log(audit.Record{
			ID:      uuid.New().String(),
			TraceID: traceID,
			AgentID: agentID,
			Kind:    audit.KindRun,
			Payload: map[string]any{
				"goal":   goal,
				"events": eventCount,
			},
			Status:     status,
			Timestamp:  start,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      errString(runErr),
		})
		s.logger.Info("run finished",
			zap.String("trace_id", traceID),
			zap.String("status", status),
			zap.Int("events", eventCount),
		)
	}()
	defer func() {
		if p := recover(); p != nil {
			runErr = fmt.Errorf("run panic: %v", p)
			status = "failed"
			s.logger.Error("panic in run pipeline", zap.String("trace_id", traceID), zap.Any("panic", p))
		}
	}()

	ctx := r.Context()
	events, err := s.runtime.Run(ctx, goal)
	if err != nil {
		runErr = err
		status = "failed"
		return
	}

	norm := stream.NewNormalizer()
	for {
		select {
		case <-ctx.Done():
			// Клиент ушёл: дописывать done некому, но Close всё равно
			// отработает инвариант на нашей стороне
			status = "disconnected"
			return

		case raw, ok := <-events:
			if !ok {
				// Апстрим закрылся без finish — done допишет Close
				return
			}

			if s.abort.IsAborted(agentID) {
				runErr = errors.New("run aborted by operator")
				status = "aborted"
				return
			}

			ev, finished := norm.Normalize(raw)
			if ev != nil {
				if werr := enc.Write(*ev); werr != nil {
					s.metrics.StreamWriteErrors.Inc()
					s.logger.Warn("stream write failed, dropping client",
						zap.String("trace_id", traceID), zap.Error(werr))
					status = "stream_error"
					return
				}
				eventCount++
				s.metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
			}
			if finished {
				return
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
