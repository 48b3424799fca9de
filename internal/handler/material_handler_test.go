package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/coursebox/internal/material"
	"github.com/hitoshi/coursebox/internal/metrics"
	"github.com/hitoshi/coursebox/internal/model"
	"github.com/hitoshi/coursebox/internal/storage"
)

func TestMaterialHandler_Action_RequestUpload(t *testing.T) {
	service := &mockMaterialService{
		requestUploadFn: func(ctx context.Context, userID int64, req material.UploadRequest) (*material.UploadTicket, error) {
			if req.CourseID != 1 || req.FileType != "application/pdf" {
				t.Errorf("unexpected request: %+v", req)
			}
			return &material.UploadTicket{
				Key: "materials/abc.pdf",
				Target: &storage.UploadTarget{
					URL:    "https://bucket.s3.amazonaws.com/",
					Fields: map[string]string{"key": "materials/abc.pdf"},
				},
			}, nil
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	body := `{"action":"request_upload","course_id":1,"filename":"講義資料.pdf","file_type":"application/pdf","visibility":"private"}`
	rec := httptest.NewRecorder()
	h.Action(rec, authedRequest(http.MethodPost, "/material", body, testUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp uploadTicketResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !strings.HasPrefix(resp.S3Key, "materials/") {
		t.Errorf("s3_key must be under materials/: %s", resp.S3Key)
	}
	if resp.UploadURL == "" || resp.Fields["key"] == "" {
		t.Error("upload_url and fields must be present")
	}
}

func TestMaterialHandler_Action_ConfirmUpload(t *testing.T) {
	service := &mockMaterialService{
		confirmUploadFn: func(ctx context.Context, userID int64, req material.ConfirmRequest) (*model.Material, error) {
			if req.Key != "materials/abc.pdf" {
				t.Errorf("unexpected key: %s", req.Key)
			}
			return &model.Material{
				ID:         5,
				Name:       req.FileName,
				UploadedBy: userID,
				CourseID:   req.CourseID,
				Visibility: model.MaterialVisibilityPrivate,
			}, nil
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	body := `{"action":"confirm_upload","s3_key":"materials/abc.pdf","course_id":1,"filename":"講義資料.pdf","file_type":"application/pdf","visibility":"private"}`
	rec := httptest.NewRecorder()
	h.Action(rec, authedRequest(http.MethodPost, "/material", body, testUser))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp materialItemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Material.UploadedBy != 10 {
		t.Errorf("unexpected uploader: %d", resp.Material.UploadedBy)
	}
}

// ストレージに実体がない確定要求は400で、レコードは作られない。
func TestMaterialHandler_Action_ConfirmUpload_FileMissing(t *testing.T) {
	service := &mockMaterialService{
		confirmUploadFn: func(ctx context.Context, userID int64, req material.ConfirmRequest) (*model.Material, error) {
			return nil, model.NewFileNotFoundError(req.Key)
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	body := `{"action":"confirm_upload","s3_key":"materials/missing.pdf","course_id":1,"filename":"a.pdf","file_type":"application/pdf"}`
	rec := httptest.NewRecorder()
	h.Action(rec, authedRequest(http.MethodPost, "/material", body, testUser))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != model.ErrCodeFileNotFound {
		t.Errorf("unexpected code: %s", resp.Code)
	}
}

func TestMaterialHandler_Action_UpdateVisibility(t *testing.T) {
	service := &mockMaterialService{
		updateVisibilityFn: func(ctx context.Context, userID, materialID int64, visibility string) (*model.Material, error) {
			if materialID != 5 || visibility != "public" {
				t.Errorf("unexpected args: %d %s", materialID, visibility)
			}
			return &model.Material{ID: 5, Visibility: model.MaterialVisibilityPublic}, nil
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	body := `{"action":"update_visibility","material_id":5,"visibility":"public"}`
	rec := httptest.NewRecorder()
	h.Action(rec, authedRequest(http.MethodPost, "/material", body, testUser))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMaterialHandler_Action_Unknown(t *testing.T) {
	h := NewMaterialHandler(&mockMaterialService{}, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.Action(rec, authedRequest(http.MethodPost, "/material", `{"action":"destroy_everything"}`, testUser))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMaterialHandler_List(t *testing.T) {
	service := &mockMaterialService{
		listByCourseFn: func(ctx context.Context, userID, courseID int64) ([]*material.MaterialWithURL, error) {
			if courseID != 1 {
				t.Errorf("unexpected course id: %d", courseID)
			}
			return []*material.MaterialWithURL{
				{
					Material:    &model.Material{ID: 5, Visibility: model.MaterialVisibilityPublic},
					DownloadURL: "https://bucket.s3.amazonaws.com/materials/abc.pdf?signed",
				},
				{
					// 署名発行に失敗した項目はdownload_urlがnullになる
					Material: &model.Material{ID: 6, Visibility: model.MaterialVisibilityPublic},
				},
			}, nil
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/material?course_id=1", "", testUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp materialListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp.Materials) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(resp.Materials))
	}
	if resp.Materials[0].DownloadURL == nil {
		t.Error("download_url must be present for the first material")
	}
	if resp.Materials[1].DownloadURL != nil {
		t.Error("download_url must be null when presigning failed")
	}
}

func TestMaterialHandler_List_RequiresCourseID(t *testing.T) {
	h := NewMaterialHandler(&mockMaterialService{}, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/material", "", testUser))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMaterialHandler_Download(t *testing.T) {
	service := &mockMaterialService{
		getDownloadURLFn: func(ctx context.Context, userID, materialID int64) (string, error) {
			if materialID != 5 {
				t.Errorf("unexpected material id: %d", materialID)
			}
			return "https://bucket.s3.amazonaws.com/materials/abc.pdf?signed", nil
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.Download(rec, authedRequest(http.MethodGet, "/material/download?material_id=5", "", testUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp downloadURLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.DownloadURL == "" {
		t.Error("download_url must be present")
	}
}

// privateな教材は本人以外にURLを発行しない。
func TestMaterialHandler_Download_Forbidden(t *testing.T) {
	service := &mockMaterialService{
		getDownloadURLFn: func(ctx context.Context, userID, materialID int64) (string, error) {
			return "", model.NewForbiddenError("この教材へのアクセス権がありません")
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.Download(rec, authedRequest(http.MethodGet, "/material/download?material_id=5", "", testUser))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestMaterialHandler_Delete(t *testing.T) {
	service := &mockMaterialService{
		deleteFn: func(ctx context.Context, userID, materialID int64) error {
			if materialID != 5 {
				t.Errorf("unexpected material id: %d", materialID)
			}
			return nil
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.Delete(rec, authedRequest(http.MethodDelete, "/material", `{"material_id":5,"course_id":1}`, testUser))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// ストレージ削除に失敗した場合はレコードを残したままエラーを返す。
func TestMaterialHandler_Delete_StorageFailure(t *testing.T) {
	service := &mockMaterialService{
		deleteFn: func(ctx context.Context, userID, materialID int64) error {
			return model.NewStorageFailureError("オブジェクトの削除に失敗しました")
		},
	}
	h := NewMaterialHandler(service, metrics.NopRecorder{})

	rec := httptest.NewRecorder()
	h.Delete(rec, authedRequest(http.MethodDelete, "/material", `{"material_id":5,"course_id":1}`, testUser))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != model.ErrCodeStorageFailure {
		t.Errorf("unexpected code: %s", resp.Code)
	}
}
