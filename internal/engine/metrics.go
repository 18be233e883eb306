package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько длился запуск целиком (от goal до done)
	RunDuration *prometheus.HistogramVec

	// Traffic: общее кол-во запусков
	RunsTotal *prometheus.CounterVec

	// Сколько событий ушло в транспорт, по типам строк
	EventsTotal *prometheus.CounterVec

	// Сбои записи в транспорт (потребитель отвалился и т.п.)
	StreamWriteErrors prometheus.Counter

	// Исходы протокола Scoped Access
	AccessOutcomes *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker коннекторов (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RunDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "watchdog_run_duration_seconds",
			Help:    "Histogram of agent run durations.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),

		RunsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "watchdog_runs_total",
			Help: "Total number of agent runs started.",
		}, []string{"agent_id"}),

		EventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "watchdog_events_total",
			Help: "Total number of stream events written, by type.",
		}, []string{"type"}),

		StreamWriteErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "watchdog_stream_write_errors_total",
			Help: "Total number of failed writes to the run-progress transport.",
		}),

		AccessOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "watchdog_access_outcomes_total",
			Help: "Total number of scoped-access protocol outcomes, by status.",
		}, []string{"status"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "watchdog_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"connector_id"}),
	}
}
