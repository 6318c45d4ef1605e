package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
	}{
		{"valid bearer", "s3cret", "Bearer s3cret", http.StatusTeapot},
		{"scheme is case insensitive", "s3cret", "bearer s3cret", http.StatusTeapot},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer guess", http.StatusUnauthorized},
		{"basic scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"unset token rejects all", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/creations", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderName, tt.header)
			}
			w := httptest.NewRecorder()

			Middleware(tt.token, nil)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate challenge")
			}
		})
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if got := IPFromRequest(req); got != "203.0.113.7" {
		t.Fatalf("IPFromRequest = %q", got)
	}
	req.RemoteAddr = "unix"
	if got := IPFromRequest(req); got != "unix" {
		t.Fatalf("IPFromRequest = %q", got)
	}
}
