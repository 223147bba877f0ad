package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	handler := authMiddleware("secret-token")(okHandler())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"token with suffix", "Bearer secret-token-extra", http.StatusUnauthorized},
		{"lowercase scheme", "bearer secret-token", http.StatusUnauthorized},
		{"valid token", "Bearer secret-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestConstantTimeEqual(t *testing.T) {
	t.Parallel()

	if !constantTimeEqual("abc", "abc") {
		t.Error("equal strings should compare true")
	}
	if constantTimeEqual("abc", "abd") {
		t.Error("different strings should compare false")
	}
	if constantTimeEqual("abc", "abcd") {
		t.Error("different lengths should compare false")
	}
}

func TestConfigAuthConfigured(t *testing.T) {
	t.Parallel()

	c := Config{}
	if c.AuthConfigured() {
		t.Error("empty token should report auth disabled")
	}
	c.AuthToken = "tok"
	if !c.AuthConfigured() {
		t.Error("set token should report auth enabled")
	}
}
