package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard echoes origin", []string{"*"}, http.MethodGet, "https://ops.example.com", "https://ops.example.com", http.StatusTeapot},
		{"explicit match", []string{"https://ops.example.com"}, http.MethodGet, "https://ops.example.com", "https://ops.example.com", http.StatusTeapot},
		{"rejected origin", []string{"https://ops.example.com"}, http.MethodGet, "https://evil.example.com", "", http.StatusTeapot},
		{"no origin", []string{"*"}, http.MethodGet, "", "", http.StatusTeapot},
		{"preflight", []string{"*"}, http.MethodOptions, "https://ops.example.com", "https://ops.example.com", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if w.Header().Get("Access-Control-Allow-Credentials") != "" {
				t.Error("credentials must never be allowed")
			}
		})
	}
}
