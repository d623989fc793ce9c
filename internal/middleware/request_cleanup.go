package middleware

import (
	"io"
	"net/http"
)

// DrainAndCloseRequest discards whatever body the handler left unread and
// closes it once the handler returns, so keep-alive connections get reused.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body != nil {
				_, _ = io.Copy(io.Discard, r.Body)
				_ = r.Body.Close()
			}
		})
	}
}
