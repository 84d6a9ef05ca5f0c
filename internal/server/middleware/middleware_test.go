package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	h := Auth("")(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthKeyChecks(t *testing.T) {
	h := Auth("sekret")(okHandler())

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{"bearer token", "/api/markets", "Authorization", "Bearer sekret", http.StatusOK},
		{"api key header", "/api/markets", "X-API-Key", "sekret", http.StatusOK},
		{"wrong key", "/api/markets", "X-API-Key", "nope", http.StatusUnauthorized},
		{"missing key", "/api/markets", "", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/markets", "Authorization", "Basic sekret", http.StatusUnauthorized},
		{"health exempt", "/api/health", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	r.Header.Set("Origin", "https://APP.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://APP.example.com" {
		t.Errorf("allow-origin = %q, want echoed origin", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("allow-methods = %q", got)
	}
}

func TestCORSRejectedOriginGetsNoHeaders(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want empty", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, request itself should still be served", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(nil)(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("empty origin list should allow every origin")
	}
	if rec.Body.Len() != 0 {
		t.Error("preflight should not reach the handler")
	}
}

func TestLoggingRecordsStatusAndPassesBody(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q, recorder must not alter it", rec.Body.String())
	}
}
