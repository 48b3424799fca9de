package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/coursebox/internal/model"
)

// UserServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	UpdateUsername(ctx context.Context, googleID, username string) (*model.User, error)
	UpdateAddress(ctx context.Context, googleID, address string) (*model.User, error)
	DeleteAccount(ctx context.Context, googleID string) error
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
// 全エンドポイントがCSRFトークンを要求する。
type ProfileHandler struct {
	service UserServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service UserServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// updateAddressRequest は住所更新リクエストのボディ。
type updateAddressRequest struct {
	Address string `json:"address"`
}

// updateUsernameRequest はユーザー名更新リクエストのボディ。
type updateUsernameRequest struct {
	Username string `json:"username"`
}

// profileResponse はプロフィール更新のレスポンス。
type profileResponse struct {
	User userResponse `json:"user"`
}

// UpdateAddress は住所を更新する。空文字列はクリアとして扱う。
// POST /profile
func (h *ProfileHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateAddress(r.Context(), user.GoogleID, req.Address)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{User: toUserResponse(updated)})
}

// UpdateUsername はユーザー名を更新する。
// PUT /profile
func (h *ProfileHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateUsername(r.Context(), user.GoogleID, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{User: toUserResponse(updated)})
}

// DeleteAccount は退会処理を行う。全セッションを失効させてから
// ユーザーレコードを削除する。
// DELETE /profile
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), user.GoogleID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}
