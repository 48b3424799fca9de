package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/coursebox/internal/model"
)

func newTestIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiter(IPRateLimiterConfig{
		Limit:           limit,
		Window:          window,
		CleanupInterval: time.Hour,
	})
}

func TestIPRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := newTestIPRateLimiter(3, time.Minute)
	defer rl.Stop()

	now := time.Now()
	for i := 0; i < 3; i++ {
		allowed, _ := rl.allow("192.0.2.1", now)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := rl.allow("192.0.2.1", now)
	if allowed {
		t.Fatal("4th request should be rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("unexpected retry-after: %v", retryAfter)
	}
}

// 固定ウィンドウと違い、古いリクエストが落ちた分だけ即座に枠が空くこと。
func TestIPRateLimiter_SlidingWindow(t *testing.T) {
	rl := newTestIPRateLimiter(2, time.Minute)
	defer rl.Stop()

	base := time.Now()
	rl.allow("192.0.2.1", base)
	rl.allow("192.0.2.1", base.Add(30*time.Second))

	// ウィンドウ内は拒否
	if allowed, _ := rl.allow("192.0.2.1", base.Add(59*time.Second)); allowed {
		t.Fatal("request inside the window should be rejected")
	}

	// 最初のリクエストがウィンドウから外れれば許可
	if allowed, _ := rl.allow("192.0.2.1", base.Add(61*time.Second)); !allowed {
		t.Fatal("request after the oldest entry expired should be allowed")
	}
}

func TestIPRateLimiter_IsolatesIPs(t *testing.T) {
	rl := newTestIPRateLimiter(1, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.allow("192.0.2.1", now)

	if allowed, _ := rl.allow("192.0.2.2", now); !allowed {
		t.Error("another ip must have its own budget")
	}
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	rl := newTestIPRateLimiter(5, time.Minute)
	defer rl.Stop()

	now := time.Now()
	rl.allow("192.0.2.1", now.Add(-2*time.Minute))
	rl.allow("192.0.2.2", now)

	rl.cleanup(now)

	if got := rl.EntryCount(); got != 1 {
		t.Errorf("expected 1 entry after cleanup, got %d", got)
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	rl := newTestIPRateLimiter(1, time.Minute)
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/course", nil)
	req.RemoteAddr = "192.0.2.1:54321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response must carry Retry-After")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:54321",
			want:       "192.0.2.1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:80",
			xff:        "203.0.113.5",
			want:       "203.0.113.5",
		},
		{
			name:       "x-forwarded-for chain uses first entry",
			remoteAddr: "10.0.0.1:80",
			xff:        "203.0.113.5, 10.0.0.2, 10.0.0.3",
			want:       "203.0.113.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestUploadRateLimiter_Middleware(t *testing.T) {
	rl := NewUploadRateLimiter(UploadRateLimiterConfig{
		Rate:            rate.Limit(1.0 / 60.0),
		Burst:           2,
		CleanupInterval: time.Hour,
	})
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/material", nil)
		return req.WithContext(ContextWithUser(req.Context(), &model.User{ID: 10}))
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newReq())
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("burst exceeded request should be limited, got %d", rec.Code)
	}
}

func TestUploadRateLimiter_RequiresSession(t *testing.T) {
	rl := NewUploadRateLimiter(DefaultUploadRateLimiterConfig())
	defer rl.Stop()

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/material", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %d", rec.Code)
	}
}
