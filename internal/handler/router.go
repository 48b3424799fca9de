package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/coursebox/internal/metrics"
	"github.com/hitoshi/coursebox/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	SessionSecret     string
	IPRateLimiter     *middleware.IPRateLimiter
	UploadRateLimiter *middleware.UploadRateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService     AuthServiceInterface
	CourseService   CourseServiceInterface
	MaterialService MaterialServiceInterface
	UserService     UserServiceInterface

	// 観測
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Metrics → IPRateLimit
//
// その内側で、認証が必要なルートにSessionMiddlewareを、
// プロフィールと連携付け替えにはさらにCSRFMiddlewareを重ねる。
// /oauth /health /metrics /logout はセッション検証の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NopRecorder{}
	}

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(metrics.Middleware(rec))
	r.Use(deps.IPRateLimiter.Middleware())

	authHandler := NewAuthHandler(deps.AuthService, rec)
	courseHandler := NewCourseHandler(deps.CourseService)
	materialHandler := NewMaterialHandler(deps.MaterialService, rec)
	profileHandler := NewProfileHandler(deps.UserService)

	// --- セッション検証不要のルート ---

	r.Get("/health", healthCheck)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Post("/oauth", authHandler.OAuth)

	// ログアウトはトークンの有効性を問わないため、セッション検証を通さない
	r.Post("/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))

		r.Get("/validate_session", authHandler.ValidateSession)

		// コース管理
		r.Route("/course", func(r chi.Router) {
			r.Get("/", courseHandler.List)
			r.Post("/", courseHandler.Create)
			r.Put("/", courseHandler.Update)
			r.Delete("/", courseHandler.Delete)

			r.Post("/co_creators", courseHandler.AddCoCreator)
			r.Delete("/co_creators", courseHandler.RemoveCoCreator)
			r.Post("/tags", courseHandler.AddTags)
		})

		// 教材管理
		r.Route("/material", func(r chi.Router) {
			r.Get("/", materialHandler.List)
			r.Get("/download", materialHandler.Download)
			// アップロード系アクションには利用者単位のレート制限を追加
			if deps.UploadRateLimiter != nil {
				r.With(deps.UploadRateLimiter.Middleware()).Post("/", materialHandler.Action)
			} else {
				r.Post("/", materialHandler.Action)
			}
			r.Delete("/", materialHandler.Delete)
		})

		// プロフィール管理と連携付け替えはCSRFトークンを要求する
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.SessionSecret))

			r.Route("/profile", func(r chi.Router) {
				r.Post("/", profileHandler.UpdateAddress)
				r.Put("/", profileHandler.UpdateUsername)
				r.Delete("/", profileHandler.DeleteAccount)
			})

			r.Post("/relink_google", authHandler.RelinkGoogle)
		})
	})

	return r
}

// healthCheck は死活監視用のエンドポイント。
// GET /health
func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
