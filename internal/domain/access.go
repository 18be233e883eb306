package domain

// Статусы State Machine запроса Scoped Access
type AccessStatus string

const (
	StatusPending  AccessStatus = "pending"
	StatusApproved AccessStatus = "approved"
	StatusDenied   AccessStatus = "denied"
	StatusTimedOut AccessStatus = "timed_out"
	StatusError    AccessStatus = "error"
)

// Terminal сообщает, завершен ли протокол. Из pending еще можно дойти
// до approved/denied опросом; из терминальных статусов переходов нет.
func (s AccessStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusTimedOut || s == StatusError
}

// ScopedAccessRequest — зарегистрированная порталом заявка.
// Оба поля непрозрачны: request_id назначает сервис, approval_url
// открывает человек. После создания не меняется.
type ScopedAccessRequest struct {
	RequestID   string `json:"request_id"`
	ApprovalURL string `json:"approval_url"`
}

// ScopedAccessOutcome — результат протокола запроса доступа.
// Клиент авторизации никогда не бросает ошибку за свою границу:
// любой исход, включая падение транспорта, упакован в это значение.
type ScopedAccessOutcome struct {
	Status        AccessStatus `json:"status"`
	RequestID     string       `json:"request_id,omitempty"`
	ApprovalURL   string       `json:"approval_url,omitempty"`
	SessionHandle string       `json:"session_handle,omitempty"` // Непрозрачный bearer-грант; скоуп и экспирация — на стороне портала
	Message       string       `json:"message,omitempty"`
}
