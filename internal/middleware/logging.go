package middleware

import (
	"net/http"
	"time"

	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// Logging logs each request at debug level. It does not wrap the
// ResponseWriter so websocket upgrades can still hijack the connection.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		debug.Debug("%s %s (%s)", r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Microsecond))
	})
}
