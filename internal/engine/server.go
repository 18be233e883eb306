package engine

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/audit"
	"github.com/xela07ax/agent-watchdog/internal/infra"
	"github.com/xela07ax/agent-watchdog/internal/infra/auth"
	"github.com/xela07ax/agent-watchdog/internal/runtime"
)

// Server — HTTP-поверхность watchdog: чат-страница, health и главный
// стриминговый эндпоинт /api/run. Каждый запуск — независимая единица
// конкурентной работы, общего мутабельного состояния между ними нет.
type Server struct {
	router  *chi.Mux
	logger  *zap.Logger
	cfg     *infra.Config
	runtime runtime.Runtime
	metrics *Metrics
	abort   *AbortManager
	trail   audit.Recorder

	// Опциональная проверка агентских токенов (RS256).
	// nil — эндпоинт открыт (локальная разработка).
	authValidator auth.TokenValidator
}

func NewServer(
	cfg *infra.Config,
	logger *zap.Logger,
	rt runtime.Runtime,
	metrics *Metrics,
	abort *AbortManager,
	trail audit.Recorder,
	authValidator auth.TokenValidator,
) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger.Named("run-api"),
		cfg:           cfg,
		runtime:       rt,
		metrics:       metrics,
		abort:         abort,
		trail:         trail,
		authValidator: authValidator,
	}

	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Get("/", s.handleIndex)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАПУСКИ: токен (если настроен) -> стоп-лист -> пайплайн ---
	r.Group(func(r chi.Router) {
		if s.authValidator != nil {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		}
		r.Use(s.abort.Middleware)

		r.Post("/api/run", s.handleRun)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(chatHTML))
}
