package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/coursebox/internal/model"
)

type mockResolver struct {
	validateFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockResolver) ValidateSession(ctx context.Context, token string) (*model.User, error) {
	return m.validateFn(ctx, token)
}

func okHandler(t *testing.T, wantUserID int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r.Context())
		if err != nil {
			t.Errorf("user must be injected: %v", err)
		} else if user.ID != wantUserID {
			t.Errorf("unexpected user id: %d", user.ID)
		}
		if _, err := SessionTokenFromContext(r.Context()); err != nil {
			t.Errorf("session token must be injected: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware_ValidToken(t *testing.T) {
	resolver := &mockResolver{
		validateFn: func(ctx context.Context, token string) (*model.User, error) {
			if token != "tok-abc" {
				t.Errorf("unexpected token: %s", token)
			}
			return &model.User{ID: 10, GoogleID: "google-1"}, nil
		},
	}

	handler := NewSessionMiddleware(resolver)(okHandler(t, 10))

	req := httptest.NewRequest(http.MethodGet, "/course", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSessionMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		resolver   *mockResolver
	}{
		{
			name:       "missing header",
			authHeader: "",
			resolver:   &mockResolver{},
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic dXNlcjpwYXNz",
			resolver:   &mockResolver{},
		},
		{
			name:       "unknown or expired session",
			authHeader: "Bearer tok-gone",
			resolver: &mockResolver{
				validateFn: func(ctx context.Context, token string) (*model.User, error) {
					return nil, model.NewUnauthorizedError()
				},
			},
		},
		{
			// DB障害でも失敗理由をクライアントに区別させない
			name:       "lookup failure",
			authHeader: "Bearer tok-abc",
			resolver: &mockResolver{
				validateFn: func(ctx context.Context, token string) (*model.User, error) {
					return nil, errors.New("connection refused")
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewSessionMiddleware(tt.resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/course", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if called {
				t.Error("next handler must not be called")
			}
		})
	}
}

func TestUserFromContext_Missing(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("expected error for missing user")
	}
	if _, err := SessionTokenFromContext(context.Background()); err == nil {
		t.Error("expected error for missing token")
	}
}
