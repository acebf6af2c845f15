package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dreschagin/soc-portal/internal/interfaces/http/handler"
	"github.com/dreschagin/soc-portal/internal/interfaces/http/middleware"
	"github.com/dreschagin/soc-portal/pkg/config"
	"github.com/dreschagin/soc-portal/pkg/logger"
)

// Handlers группирует все HTTP handlers API
type Handlers struct {
	Downtime         *handler.DowntimeHandler
	Reliability      *handler.ReliabilityHandler
	Stats            *handler.StatsHandler
	WebSocket        *handler.WebSocketHandler
	ReliabilityWatch *handler.ReliabilityWatchHandler
}

// Instrumentation описывает Prometheus слой; nil отключает /metrics
type Instrumentation interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// RouterOptions задает необязательные зависимости router
type RouterOptions struct {
	Security config.SecurityConfig
	// SubmitLimiter ограничивает POST отчетов о простоях; nil - без лимита
	SubmitLimiter *middleware.IPRateLimiter
	Metrics       Instrumentation
	// ReadinessCheck проверяет БД для /readyz
	ReadinessCheck func(ctx context.Context) error
	OnAuthFailure  func()
	OnRateLimited  func()
}

// Router настраивает маршруты приложения
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	opts     RouterOptions
	logger   *logger.Logger
}

// NewRouter создает новый router
func NewRouter(handlers Handlers, opts RouterOptions, logger *logger.Logger) *Router {
	return &Router{
		mux:      http.NewServeMux(),
		handlers: handlers,
		opts:     opts,
		logger:   logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints без авторизации для проб
	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("GET /readyz", rt.readyz)

	if rt.opts.Metrics != nil {
		rt.mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	auth := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.opts.Security.AuthEnabled,
		BearerToken: rt.opts.Security.AuthToken,
		JWTSecret:   rt.opts.Security.JWTSecret,
		JWTIssuer:   rt.opts.Security.JWTIssuer,
		OnFailure:   rt.opts.OnAuthFailure,
	}, rt.logger)

	limit := func(next http.Handler) http.Handler { return next }
	if rt.opts.SubmitLimiter != nil {
		limit = middleware.RateLimit(rt.opts.SubmitLimiter, rt.opts.OnRateLimited)
	}

	api := func(pattern string, fn http.HandlerFunc) {
		rt.mux.Handle(pattern, auth(fn))
	}

	// Простои
	dh := rt.handlers.Downtime
	rt.mux.Handle("POST /api/v1/downtimes", limit(auth(http.HandlerFunc(dh.Create))))
	rt.mux.Handle("POST /api/v1/downtimes/batch", limit(auth(http.HandlerFunc(dh.CreateBatch))))
	api("GET /api/v1/downtimes", dh.List)
	api("GET /api/v1/downtimes/channels", dh.ChannelDowntime)
	api("GET /api/v1/downtimes/types", dh.TypeSummary)
	api("GET /api/v1/downtimes/{incident}", dh.GetIncident)
	api("POST /api/v1/downtimes/{incident}/close", dh.Close)

	// Надежность
	rh := rt.handlers.Reliability
	api("GET /api/v1/reliability", rh.GetReport)
	api("POST /api/v1/reliability/exports", rh.Export)
	api("GET /api/v1/reliability/exports", rh.ListExports)

	api("GET /api/v1/stats", rt.handlers.Stats.GetStats)

	if wh := rt.handlers.ReliabilityWatch; wh != nil {
		api("GET /api/v1/reliability-watch/summary", wh.GetSummary)
		api("POST /api/v1/reliability-watch/run", wh.RunNow)
	}

	// WebSocket сам проверяет токен: браузер не может выставить заголовок
	if rt.handlers.WebSocket != nil {
		rt.mux.HandleFunc("GET /ws", rt.handlers.WebSocket.HandleConnection)
	}

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Compression(handler)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.opts.ReadinessCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rt.opts.ReadinessCheck(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", "error", err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
