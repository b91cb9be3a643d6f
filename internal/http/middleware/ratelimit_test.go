package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBurstThenRefill(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return current }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst requests should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("third immediate request should be rejected")
	}

	// A different client has its own bucket.
	if !rl.Allow("10.0.0.2") {
		t.Fatal("separate client should not share the bucket")
	}

	current = current.Add(1500 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("bucket should refill over time")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("refill should not exceed elapsed rate")
	}
}

func TestRateLimitMiddlewareRejectsWith429(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.9")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
}
