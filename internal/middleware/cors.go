package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSHandler allows the check-in web app and staff terminals to call the
// API from the configured origins. Staff auth travels in the Authorization
// header, so cookies are not allowed.
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           600,
	})
}
