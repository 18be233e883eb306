package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// CallFunc — один сетевой вызов внешнего API.
type CallFunc func(ctx context.Context) error

// Reliability оборачивает вызовы коннектора в Rate Limiter ->
// Circuit Breaker -> Retries. Каждому коннектору — свой экземпляр:
// выбитый предохранитель поиска не должен гасить граф знаний.
type Reliability struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewReliability(name string) *Reliability {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
	})

	// Лимитер на коннектор: инструменты дергаются из многих запусков сразу
	limiter := rate.NewLimiter(rate.Limit(20), 10)

	return &Reliability{
		name:    name,
		cb:      cb,
		limiter: limiter,
	}
}

// State отдает текущее состояние предохранителя (для метрик).
func (r *Reliability) State() gobreaker.State { return r.cb.State() }

func (r *Reliability) Do(ctx context.Context, call CallFunc) error {
	// 1. Rate Limiter
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := r.cb.Execute(func() (interface{}, error) {
		rt := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если API вернул ThrottleError (считали Retry-After заголовок)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := rt.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return call(tCtx)
		})

		return nil, retryErr
	})

	return err
}
