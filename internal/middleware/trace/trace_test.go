package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"moneyflow/internal/log"
)

func TestHandlerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(log.New(log.Config{Output: &buf}), func(*http.Request) string { return "192.0.2.1" })

	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/limits", nil))

	assert.True(t, strings.HasPrefix(seen, "req_"), seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	out := buf.String()
	assert.Contains(t, out, "HTTP request completed")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status_code=404")
	assert.Contains(t, out, "client_ip=192.0.2.1")
}

func TestHandlerReusesIncomingRequestID(t *testing.T) {
	m := NewMiddleware(log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	h := m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := GenerateRequestID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestHijackUnsupported(t *testing.T) {
	rw := &ResponseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	assert.Error(t, err)
}
