package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Covenant-Systems/pactum/pkg/auth"
)

func TestLocalLimiterAllowsWithinBudget(t *testing.T) {
	limiter := auth.NewLocalLimiter(1, 3)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(context.Background(), "alice")
		if err != nil || !ok {
			t.Fatalf("request %d within burst: allowed=%v err=%v", i, ok, err)
		}
	}
	ok, err := limiter.Allow(context.Background(), "alice")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatal("fourth request should exceed the burst of 3")
	}

	// A different caller has its own bucket.
	ok, err = limiter.Allow(context.Background(), "bob")
	if err != nil || !ok {
		t.Fatalf("independent caller: allowed=%v err=%v", ok, err)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := auth.NewLocalLimiter(1, 1)
	mw := auth.RateLimitMiddleware(limiter)

	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK || calls != 1 {
		t.Fatalf("first request: status=%d calls=%d", w.Code, calls)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("429 response should carry Retry-After")
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestRateLimitMiddlewareBucketsByClientIP(t *testing.T) {
	limiter := auth.NewLocalLimiter(0.0001, 1)
	mw := auth.RateLimitMiddleware(limiter)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Reconnecting from fresh ports must not mint fresh buckets.
	for i, port := range []string{"50001", "50002", "50003"} {
		req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
		req.RemoteAddr = "10.0.0.9:" + port
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		want := http.StatusOK
		if i > 0 {
			want = http.StatusTooManyRequests
		}
		if w.Code != want {
			t.Fatalf("request %d from port %s: status = %d, want %d", i, port, w.Code, want)
		}
	}

	// A different IP still gets its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/contracts", nil)
	req.RemoteAddr = "10.0.0.10:50001"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("distinct client status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddlewareNilLimiterPassesThrough(t *testing.T) {
	mw := auth.RateLimitMiddleware(nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
}
