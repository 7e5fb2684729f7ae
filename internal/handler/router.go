package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.CurrentUserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 認証
	AuthService    AuthServiceInterface
	SessionService SessionServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 運用
	HealthChecks   map[string]HealthCheck
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → StripSlashes → Recovery → Logging → SecurityHeaders → CORS
//
// OAuthフローとトークン更新は Auth レート制限（IP単位）、
// ログイン後のルートは Bearer 認証 → General レート制限（ユーザー単位）を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewNoop()
	}
	rl := deps.RateLimiter
	if rl == nil {
		rl = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.StripSlashes)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionService)
	userHandler := NewUserHandler(deps.UserService)
	requireUser := middleware.NewAuthMiddleware(deps.Resolver)

	// --- 運用 ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks, 0))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rl.AuthMiddleware())
			r.Get("/google/login", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Post("/token/refresh", authHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Use(rl.GeneralMiddleware())
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- ユーザー ---
	r.Route("/user/me", func(r chi.Router) {
		r.Use(requireUser)
		r.Use(rl.GeneralMiddleware())
		r.Get("/", userHandler.Me)
		r.Delete("/", userHandler.Withdraw)
	})

	return r
}
