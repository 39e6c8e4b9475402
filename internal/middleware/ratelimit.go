package middleware

import (
	"net/http"
	"sync"
	"time"

	"page-review/internal/config"
)

// RateLimiter implements a simple token bucket rate limiter keyed by client
// IP. Stale buckets are pruned lazily on the request path; the process runs
// no background timers.
type RateLimiter struct {
	enabled  bool
	requests int
	duration time.Duration
	visitors map[string]*visitor
	lastScan time.Time
	mu       sync.Mutex
}

type visitor struct {
	lastSeen time.Time
	tokens   int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		enabled:  cfg.Enabled,
		requests: cfg.Requests,
		duration: cfg.Duration,
		visitors: make(map[string]*visitor),
		lastScan: time.Now(),
	}
}

// Limit rate limits requests based on IP address
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if rl.allow(getIP(r)) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later."}`))
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(now)

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{lastSeen: now, tokens: rl.requests - 1}
		return true
	}

	// Refill after a full window has passed
	if now.Sub(v.lastSeen) >= rl.duration {
		v.tokens = rl.requests - 1
		v.lastSeen = now
		return true
	}

	if v.tokens > 0 {
		v.tokens--
		v.lastSeen = now
		return true
	}

	return false
}

// pruneLocked drops buckets idle for three windows. Runs at most once per
// window so the scan cost stays off the hot path.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastScan) < rl.duration {
		return
	}
	rl.lastScan = now
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 3*rl.duration {
			delete(rl.visitors, ip)
		}
	}
}

// getIP gets the client IP address from the request
func getIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
