package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantOrigin  string
		wantCreds   string
		wantStatus  int
		wantHeaders bool
	}{
		{name: "explicit origin", allowed: []string{"https://app.example"}, origin: "https://app.example", method: http.MethodGet,
			wantOrigin: "https://app.example", wantCreds: "true", wantStatus: http.StatusTeapot, wantHeaders: true},
		{name: "wildcard without credentials", allowed: []string{"*"}, origin: "https://other.example", method: http.MethodGet,
			wantOrigin: "https://other.example", wantStatus: http.StatusTeapot, wantHeaders: true},
		{name: "disallowed origin", allowed: []string{"https://app.example"}, origin: "https://evil.example", method: http.MethodGet,
			wantStatus: http.StatusTeapot},
		{name: "preflight short-circuits", allowed: []string{"*"}, origin: "https://app.example", method: http.MethodOptions,
			wantOrigin: "https://app.example", wantStatus: http.StatusOK, wantHeaders: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/session/turn", nil)
			r.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			CORS(tt.allowed)(ok).ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("allow-credentials = %q, want %q", got, tt.wantCreds)
			}
			if got := w.Header().Get("Access-Control-Allow-Headers"); (got == allowedHeaders) != tt.wantHeaders {
				t.Errorf("allow-headers = %q", got)
			}
		})
	}
}
