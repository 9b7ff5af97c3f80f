package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origin          string
		method          string
		wantOrigin      string
		wantCredentials string
		wantCode        int
		wantCalled      bool
	}{
		{
			name:       "wildcard by default",
			origin:     "",
			method:     http.MethodGet,
			wantOrigin: "*",
			wantCode:   http.StatusTeapot,
			wantCalled: true,
		},
		{
			name:            "explicit origin allows credentials",
			origin:          "http://localhost:3000",
			method:          http.MethodPost,
			wantOrigin:      "http://localhost:3000",
			wantCredentials: "true",
			wantCode:        http.StatusTeapot,
			wantCalled:      true,
		},
		{
			name:       "preflight short circuits",
			origin:     "*",
			method:     http.MethodOptions,
			wantOrigin: "*",
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := CORS(tt.origin)(okHandler(&called))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/settings", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	var called bool
	rec := httptest.NewRecorder()
	Logging(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status?x=1", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
