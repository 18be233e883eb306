package engine

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xela07ax/agent-watchdog/internal/connectors"
)

// ObserveBreakers периодически снимает состояние предохранителей
// коннекторов в gauge. Запускается из main как фоновая горутина.
func ObserveBreakers(ctx context.Context, m *Metrics, breakers map[string]*connectors.Reliability) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	sample := func() {
		for id, rel := range breakers {
			v := 0.0
			if rel.State() == gobreaker.StateOpen {
				v = 1.0
			}
			m.CircuitBreakerState.WithLabelValues(id).Set(v)
		}
	}
	sample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
