package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/coursebox/internal/model"
)

func TestProfileHandler_UpdateAddress(t *testing.T) {
	service := &mockUserService{
		updateAddressFn: func(ctx context.Context, googleID, address string) (*model.User, error) {
			if googleID != "google-1" {
				t.Errorf("unexpected google id: %s", googleID)
			}
			return &model.User{ID: 10, GoogleID: googleID, Address: address}, nil
		},
	}
	h := NewProfileHandler(service)

	rec := httptest.NewRecorder()
	h.UpdateAddress(rec, authedRequest(http.MethodPost, "/profile", `{"address":"東京都千代田区1-1"}`, testUser))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.User.Address != "東京都千代田区1-1" {
		t.Errorf("unexpected address: %s", resp.User.Address)
	}
}

func TestProfileHandler_UpdateUsername(t *testing.T) {
	service := &mockUserService{
		updateUsernameFn: func(ctx context.Context, googleID, username string) (*model.User, error) {
			return &model.User{ID: 10, GoogleID: googleID, Username: username}, nil
		},
	}
	h := NewProfileHandler(service)

	rec := httptest.NewRecorder()
	h.UpdateUsername(rec, authedRequest(http.MethodPut, "/profile", `{"username":"taro"}`, testUser))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestProfileHandler_UpdateUsername_Empty(t *testing.T) {
	service := &mockUserService{
		updateUsernameFn: func(ctx context.Context, googleID, username string) (*model.User, error) {
			return nil, model.NewInvalidRequestError("ユーザー名は必須です")
		},
	}
	h := NewProfileHandler(service)

	rec := httptest.NewRecorder()
	h.UpdateUsername(rec, authedRequest(http.MethodPut, "/profile", `{"username":""}`, testUser))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestProfileHandler_DeleteAccount(t *testing.T) {
	called := false
	service := &mockUserService{
		deleteAccountFn: func(ctx context.Context, googleID string) error {
			called = true
			if googleID != "google-1" {
				t.Errorf("unexpected google id: %s", googleID)
			}
			return nil
		},
	}
	h := NewProfileHandler(service)

	rec := httptest.NewRecorder()
	h.DeleteAccount(rec, authedRequest(http.MethodDelete, "/profile", "", testUser))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !called {
		t.Error("service must be called")
	}
}
