package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "watchdog"
)

// Ключи для Sets (состояние)
const (
	RedisKeyAbortedAgents   = RedisNamespace + ":agents:aborted_set"
	RedisKeyLockWarmupAbort = RedisNamespace + ":lock:warmup:aborted"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanAbort — канал сигналов оператора "agent_id:on/off":
	// on ставит агента в стоп-лист, off снимает.
	RedisChanAbort = RedisNamespace + ":agents:abort-signal"
)

// GetWarmupLockKey Генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
