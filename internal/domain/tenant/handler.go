package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fidely/fidely-api/internal/pkg/errorhandler"
	"github.com/fidely/fidely-api/internal/pkg/response"
)

// Getter loads a tenant
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

// Handler serves the public tenant card shown by the check-in page
type Handler struct {
	repo Getter
}

func NewHandler(repo Getter) *Handler {
	return &Handler{repo: repo}
}

// PublicResponse is what an anonymous customer may see about a store
type PublicResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Active           bool      `json:"active"`
	LocationRequired bool      `json:"location_required"`
	GeofenceMessage  string    `json:"geofence_message,omitempty"`
}

// Get handles GET /tenants/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid tenant ID")
		return
	}

	t, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			response.NotFound(w, "Tenant not found")
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tenant", err)
		return
	}

	response.OK(w, PublicResponse{
		ID:               t.ID,
		Name:             t.Name,
		Slug:             t.PushSlug(),
		Active:           t.IsActive(),
		LocationRequired: t.GeofenceCenter() != nil,
		GeofenceMessage:  t.GeofenceMessage.String,
	})
}

// Routes returns tenant router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Get)
	return r
}
