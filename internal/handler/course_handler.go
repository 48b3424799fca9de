package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/coursebox/internal/course"
	"github.com/hitoshi/coursebox/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	Create(ctx context.Context, userID int64, input course.CreateInput) (*model.Course, error)
	List(ctx context.Context, userID int64) ([]*course.CourseWithRole, error)
	Update(ctx context.Context, userID, courseID int64, input course.UpdateInput) (*model.Course, error)
	Delete(ctx context.Context, userID, courseID int64) error
	AddCoCreator(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error)
	RemoveCoCreator(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error)
	AddTags(ctx context.Context, userID, courseID int64, tags []string) (*model.Course, error)
}

// CourseHandler はコース管理のHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// createCourseRequest はコース作成リクエストのボディ。
type createCourseRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	Visibility    string   `json:"visibility"`
	Tags          []string `json:"tags"`
	CoverImageURL string   `json:"cover_image_url"`
}

// updateCourseRequest はコース更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateCourseRequest struct {
	CourseID      int64     `json:"course_id"`
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	Status        *string   `json:"status"`
	Visibility    *string   `json:"visibility"`
	Tags          *[]string `json:"tags"`
	CoverImageURL *string   `json:"cover_image_url"`
}

// deleteCourseRequest はコース削除リクエストのボディ。
type deleteCourseRequest struct {
	CourseID int64 `json:"course_id"`
}

// coCreatorRequest は共同作成者の追加・削除リクエストのボディ。
type coCreatorRequest struct {
	CourseID    int64 `json:"course_id"`
	CoCreatorID int64 `json:"co_creator_id"`
}

// addTagsRequest はタグ追加リクエストのボディ。
type addTagsRequest struct {
	CourseID int64    `json:"course_id"`
	Tags     []string `json:"tags"`
}

// courseListResponse はコース一覧のレスポンス。
type courseListResponse struct {
	Courses []courseListItemResponse `json:"courses"`
}

// courseItemResponse は単一コースのレスポンス。
type courseItemResponse struct {
	Course courseResponse `json:"course"`
}

// Create はコースを作成する。
// POST /course
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	created, err := h.service.Create(r.Context(), user.ID, course.CreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Visibility:    req.Visibility,
		Tags:          req.Tags,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, courseItemResponse{Course: toCourseResponse(created)})
}

// List は操作ユーザーが作成または共同作成しているコースの一覧を返す。
// GET /course
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, courseListResponse{Courses: toCourseListResponse(items)})
}

// Update はコースの属性を更新する。
// PUT /course
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.CourseID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("course_idは必須です"))
		return
	}

	updated, err := h.service.Update(r.Context(), user.ID, req.CourseID, course.UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		Status:        req.Status,
		Visibility:    req.Visibility,
		Tags:          req.Tags,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, courseItemResponse{Course: toCourseResponse(updated)})
}

// Delete はコースを削除する。作成者のみ実行できる。
// DELETE /course
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req deleteCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.CourseID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("course_idは必須です"))
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, req.CourseID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, successResponse{Success: true})
}

// AddCoCreator は共同作成者を追加する。
// POST /course/co_creators
func (h *CourseHandler) AddCoCreator(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req coCreatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.AddCoCreator(r.Context(), user.ID, req.CourseID, req.CoCreatorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, courseItemResponse{Course: toCourseResponse(updated)})
}

// RemoveCoCreator は共同作成者を外す。
// DELETE /course/co_creators
func (h *CourseHandler) RemoveCoCreator(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req coCreatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.RemoveCoCreator(r.Context(), user.ID, req.CourseID, req.CoCreatorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, courseItemResponse{Course: toCourseResponse(updated)})
}

// AddTags はコースにタグを追加する。重複するタグは追加されない。
// POST /course/tags
func (h *CourseHandler) AddTags(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req addTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.AddTags(r.Context(), user.ID, req.CourseID, req.Tags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, courseItemResponse{Course: toCourseResponse(updated)})
}
