package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/weatherdesk/internal/middleware"
)

// ShellService は画面ハンドラーが必要とするサービスインターフェース。
// shell.Serviceが実装する。
type ShellService interface {
	AuthServiceInterface
	WeatherServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Clients      middleware.ClientStore
	CookieSecure bool
	CookieDomain string
	Logger       *slog.Logger

	Service  ShellService
	Renderer *Renderer

	// nilの場合 /metrics は公開しない
	MetricsHandler http.Handler
}

// NewRouter は画面・認証・ヘルスチェックのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CSRF → Client
//
// /health と /metrics はクライアントを生成しないようCSRF・Clientの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(middleware.RecoveryConfig{Logger: deps.Logger}))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CookieSecure))

	authHandler := NewAuthHandler(deps.Service, AuthHandlerConfig{
		CookieDomain: deps.CookieDomain,
		CookieSecure: deps.CookieSecure,
	})
	weatherHandler := NewWeatherHandler(deps.Service, deps.Renderer)

	// --- クライアント不要のルート ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 画面 ---
	// ミドルウェアスタック: CSRF → Client
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
		}))
		r.Use(middleware.NewClientMiddleware(deps.Clients, middleware.CookieConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
		}))

		r.Get("/", weatherHandler.Home)
		r.Post("/search", weatherHandler.Search)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signup", authHandler.SignUp)
			r.Post("/logout", authHandler.Logout)
			r.Post("/mode", authHandler.Mode)

			// OAuthフロー
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/callback", authHandler.Callback)
		})
	})

	return r
}
