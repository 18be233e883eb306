package engine

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/infra"
)

// AbortManager — стоп-кран для разгулявшихся агентов. Оператор шлет
// сигнал "agent_id:on" в Redis-канал; новые запуски агента отклоняются,
// идущие сворачиваются на ближайшем событии. Проверка в Hot Path —
// только по локальной мапе.
type AbortManager struct {
	mu            sync.RWMutex
	abortedAgents map[string]struct{}
	rdb           *redis.Client
	logger        *zap.Logger
}

func NewAbortManager(rdb *redis.Client, logger *zap.Logger) *AbortManager {
	return &AbortManager{
		abortedAgents: make(map[string]struct{}),
		rdb:           rdb,
		logger:        logger.With(zap.String("mod", "abort")),
	}
}

// Init загружает текущий стоп-лист при старте сервиса.
func (m *AbortManager) Init(ctx context.Context) error {
	agents, err := m.rdb.SMembers(ctx, infra.RedisKeyAbortedAgents).Result()
	if err != nil {
		return err
	}

	return WarmupState(ctx, m.rdb, m.logger, agents, infra.RedisKeyAbortedAgents, infra.RedisKeyLockWarmupAbort, func(items []string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, id := range items {
			m.abortedAgents[id] = struct{}{}
		}
	})
}

// StartListener подписывается на сигналы оператора в реальном времени.
func (m *AbortManager) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, m.rdb, m.logger, infra.RedisChanAbort,
		func() error { return m.Init(ctx) }, // Переподключение
		func(id string, status bool) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if status {
				m.abortedAgents[id] = struct{}{}
				m.logger.Warn("agent added to abort list", zap.String("agent_id", id))
			} else {
				delete(m.abortedAgents, id)
				m.logger.Info("agent removed from abort list", zap.String("agent_id", id))
			}
		},
	)
}

// IsAborted — максимально быстрая проверка для Hot Path.
func (m *AbortManager) IsAborted(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, aborted := m.abortedAgents[agentID]
	return aborted
}

// MarkAborted ставит агента в стоп-лист локально (для тестов и
// для немедленной реакции до прихода сигнала из Redis).
func (m *AbortManager) MarkAborted(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortedAgents[agentID] = struct{}{}
}
