package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/pkg/httputil"
)

// Limiter counts requests per key in a one-minute window.
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int) (bool, int, error)
}

// RateLimitMiddleware provides rate limiting functionality
type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	enabled bool
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, limit int, enabled bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		enabled: enabled,
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.limiter == nil || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		// Skip for probes
		switch r.URL.Path {
		case "/health", "/ready", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		allowed, count, err := m.limiter.CheckRateLimit(r.Context(), clientKey(r), m.limit)
		if err != nil {
			// A broken limiter never blocks traffic
			next.ServeHTTP(w, r)
			return
		}

		remaining := m.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			httputil.ErrorFromDomain(w, domain.ErrRateLimited(time.Minute))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by forwarded or remote IP.
func clientKey(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return "ip:" + ip
}

// LocalLimiter is an in-process Limiter used when no Redis is configured.
// Each key gets a token bucket refilled at limit per minute.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter creates an empty LocalLimiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{buckets: make(map[string]*rate.Limiter)}
}

// CheckRateLimit takes one token from the key's bucket.
func (l *LocalLimiter) CheckRateLimit(_ context.Context, key string, limit int) (bool, int, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(float64(limit)/60), limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	allowed := b.Allow()
	used := limit - int(b.Tokens())
	return allowed, used, nil
}
