package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORS([]string{"chrome-extension://*", "http://localhost:5173"})(next)

	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantAllowed bool
		wantCreds   bool
	}{
		{"extension prefix", http.MethodGet, "chrome-extension://abcdef", http.StatusTeapot, true, false},
		{"explicit origin", http.MethodPost, "http://localhost:5173", http.StatusTeapot, true, true},
		{"foreign origin", http.MethodGet, "https://evil.example", http.StatusTeapot, false, false},
		{"no origin", http.MethodGet, "", http.StatusTeapot, false, false},
		{"preflight", http.MethodOptions, "chrome-extension://abcdef", http.StatusNoContent, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			gotAllowed := w.Header().Get("Access-Control-Allow-Origin") == tt.origin && tt.origin != ""
			if gotAllowed != tt.wantAllowed {
				t.Errorf("expected allowed=%v, headers %v", tt.wantAllowed, w.Header())
			}
			if gotCreds := w.Header().Get("Access-Control-Allow-Credentials") == "true"; gotCreds != tt.wantCreds {
				t.Errorf("expected credentials=%v", tt.wantCreds)
			}
		})
	}
}
