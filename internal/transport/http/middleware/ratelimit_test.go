package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeCounter struct {
	count int64
	err   error
	keys  []string
}

func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.count++
	f.keys = append(f.keys, key)
	return f.count, nil
}

func TestRateLimitMiddleware_UnderLimit(t *testing.T) {
	store := &fakeCounter{}
	mw := RateLimitMiddleware(NewFixedWindowLimiter(store, 3))(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_OverLimit(t *testing.T) {
	store := &fakeCounter{count: 3}
	mw := RateLimitMiddleware(NewFixedWindowLimiter(store, 3))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	store := &fakeCounter{err: errors.New("redis down")}
	mw := RateLimitMiddleware(NewFixedWindowLimiter(store, 1))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("store failure must fail open: got status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_KeysByAPIKey(t *testing.T) {
	store := &fakeCounter{}
	mw := RateLimitMiddleware(NewFixedWindowLimiter(store, 10))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
	req.Header.Set(APIKeyHeader, "client-a")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if len(store.keys) != 1 || store.keys[0] != "api_key:client-a" {
		t.Errorf("got keys %v, want [api_key:client-a]", store.keys)
	}
}

func TestRateLimitKey_FallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
	req.RemoteAddr = "192.0.2.7:51234"

	if got := rateLimitKey(req); got != "ip:192.0.2.7" {
		t.Errorf("got %q, want %q", got, "ip:192.0.2.7")
	}
}
