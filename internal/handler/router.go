package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/board/internal/metrics"
	"github.com/hitoshi/board/internal/middleware"
	"github.com/hitoshi/board/internal/model"
	"github.com/hitoshi/board/internal/route"
)

// Observer はルーター全体で使うメトリクスの記録先。metrics.Collectorが実装する。
type Observer interface {
	NavigationRecorder
	middleware.StatusObserver
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 画面遷移
	Routes *route.Table

	// ミドルウェア依存
	Sessions          middleware.SessionStore
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CookieSecure      bool
	CookieDomain      string
	SessionMaxAge     int // セッションCookieの有効期間（秒）

	// メトリクス（nil可）
	Observer Observer
	Gatherer prometheus.Gatherer
}

// NewRouter はルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → StripSlashes → CORS → Session → Logging → RateLimit(General)
//
// 画面ルートはさらにCSRFを通り、/login と /signup はRateLimit(Auth)も通る。
// /health と /metrics はセッションを必要としない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(chimw.StripSlashes)
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError(r.Method))
	})

	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	var (
		recorder NavigationRecorder
		status   middleware.StatusObserver
	)
	if deps.Observer != nil {
		recorder, status = deps.Observer, deps.Observer
	}

	csrf := middleware.NewCSRFMiddleware(middleware.CSRFConfig{
		MaxAge:       deps.SessionMaxAge,
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	})
	nav := NewNavigationHandler(deps.Routes, recorder, logger)
	authHandler := NewAuthHandler(logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, middleware.SessionConfig{
			MaxAge:       deps.SessionMaxAge,
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
			Limiter:      deps.RateLimiter,
		}))
		r.Use(middleware.NewLoggingMiddleware(logger, status))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(middleware.CSRFConfig{
			MaxAge:       deps.SessionMaxAge,
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
		}))

		r.Route("/auth", func(r chi.Router) {
			r.With(csrf).Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// 画面ルート。メソッドの振り分けは各画面が行う。
		for _, e := range deps.Routes.Entries() {
			r := r.With(csrf)
			if e.Name == route.Login || e.Name == route.Signup {
				r = r.With(deps.RateLimiter.AuthMiddleware())
			}
			r.Handle(route.Pattern(e.Path), nav)
		}

		r.NotFound(nav.ServeHTTP)
	})

	return r
}

// Health はプロセスの稼働確認用エンドポイント。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
