package engine

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/xela07ax/agent-watchdog/internal/infra"
)

// TracingMiddleware инициализирует Trace-ID для каждого запуска
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Пытаемся достать ID из заголовка (если пришел от прокси)
		traceID := r.Header.Get("X-Trace-ID")

		// 2. Если его нет — генерируем новый
		if traceID == "" {
			traceID = uuid.New().String()
		}

		// 3. Кладем в контекст и в ответ, чтобы клиент знал ID своего запуска
		ctx := infra.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Middleware Интегрируем проверку стоп-листа в HTTP-пайплайн запусков.
func (m *AbortManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentID := r.Header.Get("X-Agent-ID")
		if agentID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if m.IsAborted(agentID) {
			m.logger.Warn("rejected run for aborted agent")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "agent_aborted", "reason": "operator_kill_switch"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
