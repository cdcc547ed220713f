package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/picshelf/internal/metrics"
	"github.com/hitoshi/picshelf/internal/middleware"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	AuthHandler       *AuthHandler
	CollectionHandler *CollectionHandler
	SearchHandler     *SearchHandler
	SessionFinder     middleware.SessionFinder
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	ClientURL         string
	CookieSecure      bool
	CookieDomain      string
}

// NewRouter はAPIのルーティングを構築する。
//
// ミドルウェアの適用順:
//  1. Recovery（パニック回復）
//  2. SecurityHeaders
//  3. CORS
//  4. Logging（ステータスメトリクス込み）
//  5. CSRF（状態変更メソッドのみ検証）
//
// 認証が必要なエンドポイントはセッション検証とレート制限を追加で通す。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.ClientURL))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))

	sessionMw := middleware.NewSessionMiddleware(deps.SessionFinder)
	optionalSessionMw := middleware.NewOptionalSessionMiddleware(deps.SessionFinder)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// 認証（セッション不要）
	r.Get("/api/auth/{provider}", deps.AuthHandler.Login)
	r.Get("/api/auth/{provider}/callback", deps.AuthHandler.Callback)
	r.Post("/api/auth/logout", deps.AuthHandler.Logout)
	r.Get("/api/auth/current_user", deps.AuthHandler.CurrentUser)

	// 匿名でも到達できるエンドポイント（有効なセッションがあれば閲覧範囲が広がる）
	r.Group(func(r chi.Router) {
		r.Use(optionalSessionMw)
		r.Get("/api/collections/{id}", deps.CollectionHandler.Get)
		r.Get("/api/discover", deps.CollectionHandler.Discover)
	})

	// 認証必須エンドポイント
	r.Group(func(r chi.Router) {
		r.Use(sessionMw)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/collections", deps.CollectionHandler.List)
		r.Post("/api/collections", deps.CollectionHandler.Create)
		r.Put("/api/collections/{id}", deps.CollectionHandler.Update)
		r.Delete("/api/collections/{id}", deps.CollectionHandler.Delete)
		r.Post("/api/collections/{id}/like", deps.CollectionHandler.ToggleLike)

		// 画像検索は上流クォータを守るため専用のレート制限を重ねる
		r.With(deps.RateLimiter.SearchMiddleware()).Post("/api/search", deps.SearchHandler.Search)
		r.Get("/api/search/top", deps.SearchHandler.TopTerms)
		r.Get("/api/history", deps.SearchHandler.History)
	})

	return r
}
