package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agropulse/agropulse/internal/middleware"
	"github.com/agropulse/agropulse/internal/weather"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder // nil可

	// 認証
	AuthService    AuthServiceInterface
	AuthConfig     AuthHandlerConfig
	SessionMetrics SessionMetrics // nil可

	// ダッシュボード
	AdvisorService AdvisorServiceInterface
	UserFinder     UserFinder
	Fallback       weather.Fallback

	// 天気・ニュース
	WeatherFetcher WeatherFetcherInterface
	NewsService    NewsServiceInterface

	// /metrics（nilの場合はルートを公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → [SessionMiddleware → RateLimit(General)]
//
// 認証ルート（/register, /login, /logout, /me）と公開ルートはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Logger, deps.SessionMetrics)
	dashboardHandler := NewDashboardHandler(deps.AdvisorService, deps.UserFinder, deps.Fallback, deps.Logger)
	weatherHandler := NewWeatherHandler(deps.WeatherFetcher, deps.Logger)
	newsHandler := NewNewsHandler(deps.NewsService, deps.Logger)

	// --- 認証不要のルート ---

	r.Get("/", Root)
	r.Get("/api/ping", Ping)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)
	r.Get("/logout", authHandler.Logout)
	r.Get("/me", authHandler.Me)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/dashboard", dashboardHandler.Get)
		// POST /dashboard - 計画生成（専用レート制限を追加）
		r.With(deps.RateLimiter.AdvisoryMiddleware()).Post("/dashboard", dashboardHandler.Generate)

		r.Get("/api/weather", weatherHandler.Get)
		r.Get("/api/news", newsHandler.List)
	})

	return r
}
