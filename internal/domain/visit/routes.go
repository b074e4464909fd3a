package visit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the public check-in router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Register)
	return r
}

// StaffRoutes returns the point-of-sale router
func (h *Handler) StaffRoutes(staffAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(staffAuth)
	r.Post("/", h.RegisterStaff)
	return r
}
