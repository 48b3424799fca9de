package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/coursebox/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeInvalidVisibility, http.StatusBadRequest},
		{model.ErrCodeUnsupportedFileType, http.StatusBadRequest},
		{model.ErrCodeFileNotFound, http.StatusBadRequest},
		{model.ErrCodeSameAccount, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeCSRFInvalid, http.StatusForbidden},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeCourseNotFound, http.StatusNotFound},
		{model.ErrCodeMaterialNotFound, http.StatusNotFound},
		{model.ErrCodeAccountTaken, http.StatusConflict},
		{model.ErrCodeEmailTaken, http.StatusConflict},
		{model.ErrCodeRateLimited, http.StatusTooManyRequests},
		{model.ErrCodeIDPFailure, http.StatusInternalServerError},
		{model.ErrCodeStorageFailure, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code})
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

// APIError以外のエラーは詳細を伏せて500を返す。
func TestHandleServiceError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("unexpected code: %s", resp.Code)
	}
	if resp.Message == "pq: connection refused" {
		t.Error("internal detail must not leak to the client")
	}
}

// ラップされたAPIErrorもerrors.Asで取り出してマッピングする。
func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &wrapError{inner: model.NewCourseNotFoundError(1)}
	handleServiceError(rec, wrapped)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

type wrapError struct {
	inner error
}

func (e *wrapError) Error() string { return "wrapped: " + e.inner.Error() }
func (e *wrapError) Unwrap() error { return e.inner }
