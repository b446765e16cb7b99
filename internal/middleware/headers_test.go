package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(&dummyHandler{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		dummy := &dummyHandler{}
		h := CORS([]string{"*"})(dummy)
		req := httptest.NewRequest(http.MethodOptions, "/api/files", nil)
		req.Header.Set("Origin", "http://panel.local")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, dummy.called)
		assert.Equal(t, "http://panel.local", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Authorization, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("origin not allowed", func(t *testing.T) {
		dummy := &dummyHandler{}
		h := CORS([]string{"https://ok.example"})(dummy)
		req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.True(t, dummy.called)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request", func(t *testing.T) {
		dummy := &dummyHandler{}
		h := CORS([]string{"https://ok.example"})(dummy)
		req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
		req.Header.Set("Origin", "https://ok.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.True(t, dummy.called)
		assert.Equal(t, "https://ok.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
