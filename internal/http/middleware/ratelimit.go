package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	visitorIdleTTL   = 10 * time.Minute
	sweepEvery       = 2048 // requests between idle-visitor sweeps
	rateLimitMessage = "rate limit exceeded"
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter tracks a token bucket per client address. Buckets refill at
// rate tokens per second up to burst.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    float64
	requests int
	now      func() time.Time
}

// NewRateLimiter creates a per-client rate limiter.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		burst:    float64(burst),
		now:      time.Now,
	}
}

// Allow reports whether a request from addr fits within the limit.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.requests++
	if rl.requests%sweepEvery == 0 {
		rl.sweepLocked(now)
	}

	v, ok := rl.visitors[addr]
	if !ok {
		v = &visitor{tokens: rl.burst, lastSeen: now}
		rl.visitors[addr] = v
	} else {
		v.tokens += now.Sub(v.lastSeen).Seconds() * rl.rate
		if v.tokens > rl.burst {
			v.tokens = rl.burst
		}
		v.lastSeen = now
	}

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-visitorIdleTTL)
	for addr, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, addr)
		}
	}
}

// RateLimit returns middleware that answers 429 once a client exceeds the
// configured rate. Runs after chi's RealIP so RemoteAddr-derived keys hold
// the real client address.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.RemoteAddr
			if real := r.Header.Get("X-Real-Ip"); real != "" {
				addr = real
			}
			if !limiter.Allow(addr) {
				http.Error(w, rateLimitMessage, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
