package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// KeyFunc derives the rate-limit key for a request.
type KeyFunc func(r *http.Request) string

// IPKey keys requests by client IP, honoring proxy headers.
func IPKey(r *http.Request) string {
	return ClientIP(r)
}

// ClientIP extracts the originating client IP from a request.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces a per-key request limit on an HTTP handler. Decisions
// inherit the limiter's fail-open behavior: if the store is down, requests
// pass through rather than queueing behind an outage.
type Middleware struct {
	limiter *Limiter
	limit   int
	keyFn   KeyFunc
}

// NewMiddleware wraps a limiter for HTTP use. A nil keyFn keys by client IP.
func NewMiddleware(limiter *Limiter, limit int, keyFn KeyFunc) *Middleware {
	if keyFn == nil {
		keyFn = IPKey
	}
	return &Middleware{limiter: limiter, limit: limit, keyFn: keyFn}
}

// Handler wraps next with the rate limit check.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := m.limiter.CheckIP(r.Context(), m.keyFn(r), m.limit)
		if err != nil {
			// Fail open, no headers: we have no counter state to report.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining()))
		if res.Reset > 0 {
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(res.Reset).Unix()))
		}

		if !res.Allowed {
			retryAfter := int64(res.Reset / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}
