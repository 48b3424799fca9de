// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/coursebox/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey         = contextKey("user")
	sessionTokenContextKey = contextKey("session_token")
)

// SessionResolver はセッショントークンからユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionResolver interface {
	ValidateSession(ctx context.Context, token string) (*model.User, error)
}

// NewSessionMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーとセッショントークンをリクエストコンテキストに注入する
// ミドルウェアを返す。検証の途中で何が失敗しても401を返す。
// トークンの形式や失敗理由をレスポンスで区別しない。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := resolver.ValidateSession(r.Context(), token)
			if err != nil {
				if apiErr, ok := err.(*model.APIError); ok && apiErr.Code == model.ErrCodeUnauthorized {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				// DB障害等もクライアントには401として返す
				slog.Error("failed to validate session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			ctx = ContextWithSessionToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// Bearerスキームでない場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// SessionTokenFromContext はリクエストコンテキストからセッショントークンを取得する。
func SessionTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(sessionTokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("session token not found in context")
	}
	return token, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ContextWithSessionToken はコンテキストにセッショントークンを注入する。
func ContextWithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenContextKey, token)
}
