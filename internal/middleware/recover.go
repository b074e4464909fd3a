package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/fidely/fidely-api/internal/pkg/logger"
	"github.com/fidely/fidely-api/internal/pkg/response"
)

// Recover turns a panic in a handler into a 500. The request logger is used
// so the panic carries the request ID.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.FromContext(r.Context()).Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Panic recovered while handling visit request")

			response.InternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}
