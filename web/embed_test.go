package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPAHandler(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html": {Data: []byte("<html>coach</html>")},
		"app.js":     {Data: []byte("console.log(1)")},
	}
	h := spaHandler(fsys)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "root", path: "/", status: http.StatusOK, body: "coach"},
		{name: "asset", path: "/app.js", status: http.StatusOK, body: "console.log"},
		{name: "client route falls back", path: "/session/abc", status: http.StatusOK, body: "coach"},
		{name: "unknown api route", path: "/api/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestEmbeddedIndexPresent(t *testing.T) {
	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Voice Coach")
}

func TestClientStartReusesIdempotencyKey(t *testing.T) {
	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	js := rec.Body.String()
	assert.Contains(t, js, "'X-Idempotency-Key': startKey")
	assert.Contains(t, js, "startInFlight")
	assert.NotContains(t, js, "'X-Idempotency-Key': crypto.randomUUID()")
}
