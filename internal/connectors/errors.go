package connectors

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured — коннектор не настроен (нет ключа/адреса).
// Инструменты мапят это в "мягкий" отказ, а не в ошибку запуска.
var ErrNotConfigured = errors.New("connector is not configured")

// ThrottleError несет Retry-After внешнего API: ретраи ждут ровно
// столько, сколько попросил сервис, вместо общего бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
