package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tinylink-io/tinylink/internal/constants"
	"github.com/tinylink-io/tinylink/pkg/httputils"
)

// WindowCounter is the counting store behind the limiter, satisfied by
// the Redis fixed-window implementation.
type WindowCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// FixedWindowLimiter enforces a simple counter per caller per fixed time
// window on link creation.
type FixedWindowLimiter struct {
	store WindowCounter
	limit int64
}

func NewFixedWindowLimiter(store WindowCounter, limitPerMinute int) *FixedWindowLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	return &FixedWindowLimiter{
		store: store,
		limit: int64(limitPerMinute),
	}
}

func RateLimitMiddleware(limiter *FixedWindowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)
			ctx, cancel := context.WithTimeout(r.Context(), 200*time.Millisecond)
			defer cancel()

			count, err := limiter.store.Incr(ctx, key)
			if err != nil {
				// Fail open: do not block creates if the counter store is
				// temporarily unavailable.
				next.ServeHTTP(w, r)
				return
			}
			if count > limiter.limit {
				httputils.WriteAPIError(w, r, constants.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader)); apiKey != "" {
		return "api_key:" + apiKey
	}

	// Fallback: use client IP (best-effort).
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return "ip:" + host
	}
	return "ip:unknown"
}
