package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds API handlers. It buffers the response, so it must not wrap
// streaming or upgraded connections.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"error":"request timed out","code":"REQUEST_TIMEOUT"}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
