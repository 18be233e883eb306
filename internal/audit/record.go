package audit

import "time"

// Виды записей. Сам поток событий запуска НЕ персистится —
// в трейл попадают только итоги.
const (
	KindAccessRequest = "access_request" // исход протокола Scoped Access
	KindRun           = "run"            // сводка одного запуска агента
)

type Record struct {
	ID      string `json:"id"`       // UUID записи
	TraceID string `json:"trace_id"` // Сквозной ID запуска
	AgentID string `json:"agent_id"` // Кто делал
	Kind    string `json:"kind"`     // access_request | run

	// Payload: для access_request — summary/domains/request_id,
	// для run — goal/счетчики событий
	Payload map[string]interface{} `json:"payload"`

	Status     string    `json:"status"` // approved/denied/..., completed/failed
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error"`
}
