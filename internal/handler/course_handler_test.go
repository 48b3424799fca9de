package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/coursebox/internal/course"
	"github.com/hitoshi/coursebox/internal/model"
)

var testUser = &model.User{ID: 10, GoogleID: "google-1"}

func TestCourseHandler_Create(t *testing.T) {
	service := &mockCourseService{
		createFn: func(ctx context.Context, userID int64, input course.CreateInput) (*model.Course, error) {
			if userID != 10 {
				t.Errorf("unexpected user id: %d", userID)
			}
			if input.Title != "Go入門" {
				t.Errorf("unexpected title: %s", input.Title)
			}
			return &model.Course{
				ID:             1,
				Title:          input.Title,
				PrimaryCreator: userID,
				Status:         model.CourseStatusDraft,
				Visibility:     model.CourseVisibilityPrivate,
			}, nil
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/course", `{"title":"Go入門"}`, testUser))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp courseItemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Course.ID != 1 {
		t.Errorf("unexpected course id: %d", resp.Course.ID)
	}
	// JSONB集合のフィールドはnullでなく空配列で返す
	if resp.Course.MaterialIDs == nil || resp.Course.CoCreatorIDs == nil || resp.Course.Tags == nil {
		t.Error("set fields must be empty arrays, not null")
	}
}

func TestCourseHandler_Create_InvalidBody(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{})

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/course", "not json", testUser))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCourseHandler_List(t *testing.T) {
	service := &mockCourseService{
		listFn: func(ctx context.Context, userID int64) ([]*course.CourseWithRole, error) {
			return []*course.CourseWithRole{
				{Course: &model.Course{ID: 1, PrimaryCreator: 10}, IsOwner: true},
				{Course: &model.Course{ID: 2, PrimaryCreator: 20, CoCreatorIDs: []int64{10}}, IsOwner: false},
			}, nil
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/course", "", testUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp courseListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp.Courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(resp.Courses))
	}
	if !resp.Courses[0].IsOwner || resp.Courses[1].IsOwner {
		t.Error("is_owner flags do not match")
	}
}

func TestCourseHandler_Update_RequiresCourseID(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{})

	rec := httptest.NewRecorder()
	h.Update(rec, authedRequest(http.MethodPut, "/course", `{"title":"新タイトル"}`, testUser))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCourseHandler_Update_PartialFields(t *testing.T) {
	service := &mockCourseService{
		updateFn: func(ctx context.Context, userID, courseID int64, input course.UpdateInput) (*model.Course, error) {
			if courseID != 1 {
				t.Errorf("unexpected course id: %d", courseID)
			}
			if input.Title == nil || *input.Title != "新タイトル" {
				t.Error("title must be set")
			}
			if input.Description != nil {
				t.Error("description must stay nil when omitted")
			}
			return &model.Course{ID: 1, Title: *input.Title, PrimaryCreator: 10}, nil
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.Update(rec, authedRequest(http.MethodPut, "/course", `{"course_id":1,"title":"新タイトル"}`, testUser))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCourseHandler_Delete_Forbidden(t *testing.T) {
	service := &mockCourseService{
		deleteFn: func(ctx context.Context, userID, courseID int64) error {
			return model.NewForbiddenError("コースの削除は作成者のみ可能です")
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.Delete(rec, authedRequest(http.MethodDelete, "/course", `{"course_id":1}`, testUser))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestCourseHandler_Delete_NotFound(t *testing.T) {
	service := &mockCourseService{
		deleteFn: func(ctx context.Context, userID, courseID int64) error {
			return model.NewCourseNotFoundError(courseID)
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.Delete(rec, authedRequest(http.MethodDelete, "/course", `{"course_id":99}`, testUser))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCourseHandler_AddCoCreator(t *testing.T) {
	service := &mockCourseService{
		addCoCreatorFn: func(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error) {
			if coCreatorID != 20 {
				t.Errorf("unexpected co-creator id: %d", coCreatorID)
			}
			return &model.Course{ID: courseID, PrimaryCreator: userID, CoCreatorIDs: []int64{20}}, nil
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.AddCoCreator(rec, authedRequest(http.MethodPost, "/course/co_creators", `{"course_id":1,"co_creator_id":20}`, testUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp courseItemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(resp.Course.CoCreatorIDs) != 1 || resp.Course.CoCreatorIDs[0] != 20 {
		t.Errorf("unexpected co_creator_ids: %v", resp.Course.CoCreatorIDs)
	}
}

func TestCourseHandler_AddTags(t *testing.T) {
	service := &mockCourseService{
		addTagsFn: func(ctx context.Context, userID, courseID int64, tags []string) (*model.Course, error) {
			if len(tags) != 2 {
				t.Errorf("unexpected tags: %v", tags)
			}
			return &model.Course{ID: courseID, PrimaryCreator: userID, Tags: tags}, nil
		},
	}
	h := NewCourseHandler(service)

	rec := httptest.NewRecorder()
	h.AddTags(rec, authedRequest(http.MethodPost, "/course/tags", `{"course_id":1,"tags":["go","web"]}`, testUser))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
