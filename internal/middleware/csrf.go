package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/coursebox/internal/auth"
	"github.com/hitoshi/coursebox/internal/model"
)

// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
const csrfHeaderName = "X-CSRF-Token"

// NewCSRFMiddleware はX-CSRF-Tokenヘッダーを検証するミドルウェアを返す。
// トークンはセッショントークンからHMACで導出されるため、サーバー側に
// 保存は不要で、セッション失効と同時に無効になる。
// セッションミドルウェアの後に配置すること。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップする。
func NewCSRFMiddleware(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sessionToken, err := SessionTokenFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			headerToken := r.Header.Get(csrfHeaderName)
			if !auth.VerifyCSRFToken(secret, sessionToken, headerToken) {
				slog.Warn("csrf validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
