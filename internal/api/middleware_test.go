package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})
	h := recoveryMiddleware(nopLogger())(panicky)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}

	var body errorBody
	decodeData(t, w, &body)
	if body.Error != "internal_error" {
		t.Errorf("error code = %q", body.Error)
	}
}

func TestRequestIDMiddlewareGenerates(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	})
	h := requestIDMiddleware()(inner)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Error("no request id in context")
	}
	if got := w.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("X-Request-ID header = %q, context has %q", got, seen)
	}
}

func TestRequestIDMiddlewarePropagates(t *testing.T) {
	h := requestIDMiddleware()(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "upstream-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("X-Request-ID = %q, want upstream-id", got)
	}
}

func TestCORSAllowsKnownOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached inner handler")
	}))

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestAuthMiddlewareDisabledIsAnonymous(t *testing.T) {
	var got bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, got = principalFromContext(r.Context())
	})
	h := authMiddleware(nil, nopLogger())(inner)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !got {
		t.Error("no principal in context when auth disabled")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"direct", "192.0.2.10:5123", nil, false, "192.0.2.10"},
		{"ignores headers when untrusted", "192.0.2.10:5123",
			map[string]string{"X-Real-IP": "198.51.100.7"}, false, "192.0.2.10"},
		{"x-real-ip when trusted", "192.0.2.10:5123",
			map[string]string{"X-Real-IP": "198.51.100.7"}, true, "198.51.100.7"},
		{"x-forwarded-for first hop", "192.0.2.10:5123",
			map[string]string{"X-Forwarded-For": "203.0.113.4, 198.51.100.7"}, true, "203.0.113.4"},
		{"invalid header falls back", "192.0.2.10:5123",
			map[string]string{"X-Real-IP": "not-an-ip"}, true, "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterExhaustsBurst(t *testing.T) {
	rl := newRateLimiter(0.0, 2)

	if !rl.allow("10.0.0.1") || !rl.allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Error("third request should be limited")
	}
	// Other IPs have their own bucket.
	if !rl.allow("10.0.0.2") {
		t.Error("different IP should not be limited")
	}
}
