// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/coursebox/internal/auth"
	"github.com/hitoshi/coursebox/internal/metrics"
	"github.com/hitoshi/coursebox/internal/middleware"
	"github.com/hitoshi/coursebox/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はGoogleのIDトークンを検証し、セッションを発行する。
	Login(ctx context.Context, credential string) (*auth.LoginResult, error)
	// Logout はセッションを失効させる。未知のトークンでも成功を返す。
	Logout(ctx context.Context, token string) error
	// RelinkGoogle はGoogle連携を別アカウントへ付け替える。
	RelinkGoogle(ctx context.Context, user *model.User, credential string) (*auth.LoginResult, error)
	// CSRFTokenFor はセッショントークンからCSRFトークンを導出する。
	CSRFTokenFor(sessionToken string) string
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics metrics.Recorder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, rec metrics.Recorder) *AuthHandler {
	return &AuthHandler{service: service, metrics: rec}
}

// credentialRequest はIDトークンを運ぶリクエストボディ。
type credentialRequest struct {
	Credential string `json:"credential"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	User         userResponse `json:"user"`
	SessionToken string       `json:"session_token"`
	CSRFToken    string       `json:"csrf_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// validateSessionResponse はセッション検証のレスポンス。
type validateSessionResponse struct {
	User      userResponse `json:"user"`
	CSRFToken string       `json:"csrf_token"`
}

// OAuth はGoogleのIDトークンでログインする。
// POST /oauth
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	result, err := h.service.Login(r.Context(), req.Credential)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordLogin()
	writeJSONResponse(w, http.StatusOK, loginResponse{
		User:         toUserResponse(result.User),
		SessionToken: result.Session.Token,
		CSRFToken:    result.CSRFToken,
		ExpiresAt:    result.Session.ExpiresAt,
	})
}

// Logout はセッションを失効させる。
// トークンの有無や失効結果によらず常に200を返す。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)

	if err := h.service.Logout(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}

// ValidateSession はセッションを検証し、ユーザーとCSRFトークンを返す。
// GET /validate_session
func (h *AuthHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	token, err := middleware.SessionTokenFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSONResponse(w, http.StatusOK, validateSessionResponse{
		User:      toUserResponse(user),
		CSRFToken: h.service.CSRFTokenFor(token),
	})
}

// RelinkGoogle はGoogle連携を別のGoogleアカウントへ付け替える。
// 旧セッションは全て失効するため、クライアントは返却された新しい
// セッショントークンに差し替える必要がある。
// POST /relink_google
func (h *AuthHandler) RelinkGoogle(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	result, err := h.service.RelinkGoogle(r.Context(), user, req.Credential)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, loginResponse{
		User:         toUserResponse(result.User),
		SessionToken: result.Session.Token,
		CSRFToken:    result.CSRFToken,
		ExpiresAt:    result.Session.ExpiresAt,
	})
}
