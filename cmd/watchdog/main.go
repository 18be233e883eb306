package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/access"
	"github.com/xela07ax/agent-watchdog/internal/audit"
	"github.com/xela07ax/agent-watchdog/internal/connectors"
	"github.com/xela07ax/agent-watchdog/internal/engine"
	"github.com/xela07ax/agent-watchdog/internal/infra"
	"github.com/xela07ax/agent-watchdog/internal/infra/auth"
	"github.com/xela07ax/agent-watchdog/internal/repository/postgres"
	agentruntime "github.com/xela07ax/agent-watchdog/internal/runtime"
	"github.com/xela07ax/agent-watchdog/internal/tools"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Аудит: Postgres пачками, либо заглушка для локального запуска
	var trail audit.Recorder = audit.NopRecorder{}
	if cfg.Database.URL != "" {
		repo, err := postgres.NewAuditRepo(cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal("failed to init audit storage", zap.Error(err))
		}
		defer repo.Close()

		pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := repo.Ping(pingCtx); err != nil {
			logger.Fatal("audit storage is unreachable", zap.Error(err))
		}
		pingCancel()

		t := audit.NewTrail(repo, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval, logger)
		t.Start()
		defer t.Stop()
		trail = t
	} else {
		logger.Warn("database.url is not set, audit trail is disabled")
	}

	// 3. Control Plane: стоп-лист агентов на Redis
	abort := engine.NewAbortManager(rdb, logger)
	if err := abort.Init(appCtx); err != nil {
		// Redis может подняться позже: слушатель сам восстановится
		logger.Warn("abort-manager warmup failed, starting with empty stop-list", zap.Error(err))
	}
	go abort.StartListener(appCtx)

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	// 5. Коннекторы внешних систем
	accessClient := access.NewClient(access.Options{
		BaseURL:      cfg.Pulse.BaseURL,
		AgentID:      cfg.Pulse.AgentID,
		UserID:       cfg.Pulse.UserID,
		PollInterval: cfg.Pulse.PollInterval,
		PollDeadline: cfg.Pulse.PollDeadline,
	}, logger)
	tavily := connectors.NewTavilyClient(cfg.Tavily.BaseURL, cfg.Tavily.APIKey, logger)
	graph := connectors.NewGraphClient(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database, logger)

	go engine.ObserveBreakers(appCtx, metrics, map[string]*connectors.Reliability{
		"tavily": tavily.Reliability(),
		"graph":  graph.Reliability(),
	})

	// 6. Инструменты агента
	registry := tools.NewRegistry()
	registry.Register(tools.NewScopedAccessTool(accessClient, cfg.Pulse.AgentID, trail, func(status string) {
		metrics.AccessOutcomes.WithLabelValues(status).Inc()
	}, logger))
	registry.Register(tools.NewSearchTool(tavily))
	registry.Register(tools.NewGraphStoreTool(graph))
	registry.Register(tools.NewGraphQueryTool(graph))
	registry.Register(tools.NewScenarioTool(cfg.Engine.DefaultScenario))

	rt := agentruntime.NewScripted(registry, logger)

	// 7. Опциональная проверка токенов (RS256)
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("failed to parse auth public key", zap.Error(err))
		}
		validator = auth.NewBaseValidator(pubKey)
	} else {
		logger.Warn("auth public key is not set, /api/run is open")
	}

	// 8. HTTP Server
	server := engine.NewServer(cfg, logger, rt, metrics, abort, trail, validator)

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Handler(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// WriteTimeout не ставим: /api/run — chunked-поток
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("watchdog started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("watchdog stopping...")

	// Даем время дописать активные потоки
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("watchdog exited properly")
}
