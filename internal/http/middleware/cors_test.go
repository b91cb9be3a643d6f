package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(t *testing.T, mw func(http.Handler) http.Handler, method, origin string, preflight bool) (*httptest.ResponseRecorder, *bool) {
	t.Helper()
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/health", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, &called
}

func TestCORSListedOrigin(t *testing.T) {
	mw := CORS([]string{"https://app.example.com"})
	rec, called := corsRequest(t, mw, http.MethodGet, "https://app.example.com", false)

	if !*called {
		t.Fatal("handler should run for a simple request")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("Allow-Methods header missing")
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatal("Allow-Headers header missing")
	}
}

func TestCORSUnlistedOriginGetsNoHeaders(t *testing.T) {
	mw := CORS([]string{"https://app.example.com"})
	rec, _ := corsRequest(t, mw, http.MethodGet, "https://evil.example", false)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q, want empty", got)
	}
}

func TestCORSWildcardEchoesOrigin(t *testing.T) {
	mw := CORS([]string{"*"})
	rec, _ := corsRequest(t, mw, http.MethodGet, "https://anything.example", false)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anything.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	mw := CORS([]string{"https://app.example.com"})
	rec, called := corsRequest(t, mw, http.MethodOptions, "https://app.example.com", true)

	if *called {
		t.Fatal("preflight must not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
}
