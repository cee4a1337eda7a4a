package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		token  string
		header string
		query  string
		want   int
	}{
		{"sin token configurado", "", "", "", http.StatusNoContent},
		{"bearer válido", "s3cret", "Bearer s3cret", "", http.StatusNoContent},
		{"query válido", "s3cret", "", "s3cret", http.StatusNoContent},
		{"sin credenciales", "s3cret", "", "", http.StatusUnauthorized},
		{"bearer incorrecto", "s3cret", "Bearer otro", "", http.StatusUnauthorized},
		{"esquema incorrecto", "s3cret", "Basic s3cret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/v1/monitor"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tt.token)(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
