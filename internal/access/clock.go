package access

import (
	"context"
	"time"
)

// Clock абстрагирует время для цикла опроса. В тестах подменяется
// фейком, который "проматывает" дедлайн без реальных задержек.
type Clock interface {
	Now() time.Time
	// Sleep ждет d или отмену контекста — что наступит раньше.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
