package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cinelog/internal/authz"
	"github.com/hitoshi/cinelog/internal/metrics"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 観測
	HealthChecker HealthChecker
	Collector     *metrics.Collector
	Gatherer      prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログ
	CollectionService CollectionServiceInterface
	MovieService      MovieServiceInterface
	Gate              *authz.Gate

	// カバー画像
	CoverURLGuard   security.CoverURLGuardService
	UploadDir       string
	UploadMaxSize   int64
	CoverURLTimeout time.Duration

	// フィード
	BaseURL string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → CORS → SecurityHeaders
//	→（読み取り: OptionalSession、変更: Session → CSRF）→ RateLimit
//
// コレクションと映画の読み取りは匿名で許可されるため、読み取りルートは
// OptionalSessionを使い、変更ルートのみセッションを必須とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// Collectorがnilのときnilインターフェースとして渡す
	var loginRecorder LoginRecorder
	var coverRecorder CoverRecorder
	if deps.Collector != nil {
		loginRecorder = deps.Collector
		coverRecorder = deps.Collector
	}

	authHandler := NewAuthHandler(deps.AuthService, loginRecorder, deps.AuthConfig)
	collHandler := NewCollectionHandler(deps.CollectionService, deps.Gate)
	movieHandler := NewMovieHandler(
		deps.MovieService, deps.CollectionService, deps.Gate,
		deps.CoverURLGuard, coverRecorder, deps.UploadMaxSize,
	)
	feedsHandler := NewFeedsHandler(deps.CollectionService, deps.MovieService, deps.BaseURL)
	previewHandler := NewCoverPreviewHandler(deps.CoverURLGuard, deps.CoverURLTimeout)

	optionalSession := middleware.NewOptionalSessionMiddleware(deps.SessionFinder)
	requireSession := middleware.NewSessionMiddleware(deps.SessionFinder)
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 観測系ルート ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.Login)
		r.Get("/{provider}/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- アップロード済みカバー画像の静的配信 ---
	if deps.UploadDir != "" {
		fs := http.StripPrefix("/covers/", http.FileServer(http.Dir(deps.UploadDir)))
		r.Get("/covers/*", fs.ServeHTTP)
	}

	// --- 読み取り専用フィード（常に公開） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/collections/json", feedsHandler.CollectionsJSON)
		r.Get("/collections/atom", feedsHandler.CollectionsAtom)
		r.Get("/collections/{id}/movies/json", feedsHandler.MoviesJSON)
		r.Get("/collections/{id}/movies/atom", feedsHandler.MoviesAtom)
		r.Get("/collections/{id}/movies/{mid}/json", feedsHandler.MovieJSON)
		r.Get("/collections/{id}/movies/{mid}/atom", feedsHandler.MovieAtom)
	})

	// --- 読み取りルート（匿名可、セッションがあればEditable判定に使う） ---
	r.Group(func(r chi.Router) {
		r.Use(optionalSession)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/collections", collHandler.List)
		r.Get("/api/collections/{id}", collHandler.Get)
		r.Get("/api/collections/{id}/movies", movieHandler.ListByCollection)
		r.Get("/api/movies/{id}", movieHandler.Get)
	})

	// --- 変更ルート（セッション必須、CSRF検証あり） ---
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Use(csrf)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/collections", collHandler.Create)
		r.Patch("/api/collections/{id}", collHandler.Update)
		r.Delete("/api/collections/{id}", collHandler.Delete)

		// カバー画像を伴うルートはアップロード専用レート制限を追加
		r.With(deps.RateLimiter.UploadMiddleware()).
			Post("/api/collections/{id}/movies", movieHandler.Create)
		r.With(deps.RateLimiter.UploadMiddleware()).
			Patch("/api/movies/{id}", movieHandler.Update)
		r.Delete("/api/movies/{id}", movieHandler.Delete)

		r.Get("/api/cover-preview", previewHandler.Preview)
	})

	// CSRFトークン取得エンドポイント
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	return r
}
