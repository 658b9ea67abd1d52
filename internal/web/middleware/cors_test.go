package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsLocalhostOrigin(t *testing.T) {
	tests := []struct {
		origin   string
		expected bool
	}{
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://localhost:8443", true},
		{"http://localhost.evil.com", false},
		{"https://orchid.example.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			if got := isLocalhostOrigin(tc.origin); got != tc.expected {
				t.Errorf("isLocalhostOrigin(%q) = %v; want %v", tc.origin, got, tc.expected)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://orchid.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		allowOrigin string
		status      int
	}{
		{"allowed origin", "GET", "https://orchid.example.com", "https://orchid.example.com", http.StatusTeapot},
		{"unknown origin", "GET", "https://evil.example.com", "", http.StatusTeapot},
		{"localhost", "GET", "http://localhost:3000", "http://localhost:3000", http.StatusTeapot},
		{"preflight", "OPTIONS", "https://orchid.example.com", "https://orchid.example.com", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/photos", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.allowOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tc.allowOrigin, got)
			}
		})
	}
}
