package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/coursebox/internal/material"
	"github.com/hitoshi/coursebox/internal/metrics"
	"github.com/hitoshi/coursebox/internal/model"
)

// MaterialServiceInterface は教材ハンドラーが必要とするサービスインターフェース。
type MaterialServiceInterface interface {
	RequestUpload(ctx context.Context, userID int64, req material.UploadRequest) (*material.UploadTicket, error)
	ConfirmUpload(ctx context.Context, userID int64, req material.ConfirmRequest) (*model.Material, error)
	ListByCourse(ctx context.Context, userID, courseID int64) ([]*material.MaterialWithURL, error)
	UpdateVisibility(ctx context.Context, userID, materialID int64, visibility string) (*model.Material, error)
	Delete(ctx context.Context, userID, materialID int64) error
	GetDownloadURL(ctx context.Context, userID, materialID int64) (string, error)
}

// MaterialHandler は教材管理のHTTPハンドラー。
type MaterialHandler struct {
	service MaterialServiceInterface
	metrics metrics.Recorder
}

// NewMaterialHandler はMaterialHandlerを生成する。
func NewMaterialHandler(service MaterialServiceInterface, rec metrics.Recorder) *MaterialHandler {
	return &MaterialHandler{service: service, metrics: rec}
}

// アクション種別。POST /material のactionフィールドで指定する。
const (
	actionRequestUpload    = "request_upload"
	actionConfirmUpload    = "confirm_upload"
	actionUpdateVisibility = "update_visibility"
)

// materialActionRequest はPOST /materialの全アクション共通のボディ。
// アクションによって使用するフィールドが異なる。
type materialActionRequest struct {
	Action     string `json:"action"`
	CourseID   int64  `json:"course_id"`
	MaterialID int64  `json:"material_id"`
	S3Key      string `json:"s3_key"`
	FileName   string `json:"filename"`
	FileType   string `json:"file_type"`
	Visibility string `json:"visibility"`
}

// deleteMaterialRequest は教材削除リクエストのボディ。
type deleteMaterialRequest struct {
	MaterialID int64 `json:"material_id"`
	CourseID   int64 `json:"course_id"`
}

// uploadTicketResponse はアップロード開始のレスポンス。
// クライアントはupload_urlへfieldsを添えたmultipart/form-dataで
// 直接POSTし、その後s3_keyを添えてconfirm_uploadを呼ぶ。
type uploadTicketResponse struct {
	UploadURL string            `json:"upload_url"`
	Fields    map[string]string `json:"fields"`
	S3Key     string            `json:"s3_key"`
}

// materialItemResponse は単一教材のレスポンス。
type materialItemResponse struct {
	Material materialResponse `json:"material"`
}

// materialListResponse は教材一覧のレスポンス。
type materialListResponse struct {
	Materials []materialListItemResponse `json:"materials"`
}

// Action はPOST /materialのアクションを振り分ける。
// POST /material
func (h *MaterialHandler) Action(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req materialActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	switch req.Action {
	case actionRequestUpload:
		h.requestUpload(w, r, user.ID, req)
	case actionConfirmUpload:
		h.confirmUpload(w, r, user.ID, req)
	case actionUpdateVisibility:
		h.updateVisibility(w, r, user.ID, req)
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("不明なactionです: "+req.Action))
	}
}

// requestUpload は署名付きアップロード先を発行する。DBには何も書かない。
func (h *MaterialHandler) requestUpload(w http.ResponseWriter, r *http.Request, userID int64, req materialActionRequest) {
	ticket, err := h.service.RequestUpload(r.Context(), userID, material.UploadRequest{
		CourseID:   req.CourseID,
		FileName:   req.FileName,
		FileType:   req.FileType,
		Visibility: req.Visibility,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordUploadRequested()
	writeJSONResponse(w, http.StatusOK, uploadTicketResponse{
		UploadURL: ticket.Target.URL,
		Fields:    ticket.Target.Fields,
		S3Key:     ticket.Key,
	})
}

// confirmUpload はストレージ上の実体を確認してから教材レコードを作成する。
func (h *MaterialHandler) confirmUpload(w http.ResponseWriter, r *http.Request, userID int64, req materialActionRequest) {
	created, err := h.service.ConfirmUpload(r.Context(), userID, material.ConfirmRequest{
		CourseID:   req.CourseID,
		Key:        req.S3Key,
		FileName:   req.FileName,
		FileType:   req.FileType,
		Visibility: req.Visibility,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordUploadConfirmed()
	writeJSONResponse(w, http.StatusCreated, materialItemResponse{Material: toMaterialResponse(created)})
}

// updateVisibility は教材の可視性を変更する。アップロード者のみ実行できる。
func (h *MaterialHandler) updateVisibility(w http.ResponseWriter, r *http.Request, userID int64, req materialActionRequest) {
	updated, err := h.service.UpdateVisibility(r.Context(), userID, req.MaterialID, req.Visibility)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, materialItemResponse{Material: toMaterialResponse(updated)})
}

// List はコースに紐付く、操作ユーザーに見える教材の一覧を返す。
// GET /material?course_id=123
func (h *MaterialHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	courseID, err := strconv.ParseInt(r.URL.Query().Get("course_id"), 10, 64)
	if err != nil || courseID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("course_idは必須です"))
		return
	}

	items, err := h.service.ListByCourse(r.Context(), user.ID, courseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, materialListResponse{Materials: toMaterialListResponse(items)})
}

// downloadURLResponse はダウンロードURL発行のレスポンス。
type downloadURLResponse struct {
	DownloadURL string `json:"download_url"`
}

// Download は教材の期限付きダウンロードURLを発行する。
// GET /material/download?material_id=5
func (h *MaterialHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	materialID, err := strconv.ParseInt(r.URL.Query().Get("material_id"), 10, 64)
	if err != nil || materialID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("material_idは必須です"))
		return
	}

	url, err := h.service.GetDownloadURL(r.Context(), user.ID, materialID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, downloadURLResponse{DownloadURL: url})
}

// Delete は教材を削除する。ストレージ上のオブジェクトを先に削除し、
// 成功した場合のみレコードを消す。
// DELETE /material
func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req deleteMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.MaterialID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("material_idは必須です"))
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, req.MaterialID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}
