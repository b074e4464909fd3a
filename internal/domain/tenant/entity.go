package tenant

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/fidely/fidely-api/internal/pkg/geo"
)

// Status represents tenant activation state
type Status string

const (
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusTrialExpired Status = "trial_expired"
)

// Tenant is a merchant account. The visit engine only reads it.
type Tenant struct {
	ID              uuid.UUID       `db:"id"`
	Name            string          `db:"name"`
	Slug            string          `db:"slug"`
	Status          Status          `db:"status"`
	GeofenceLat     sql.NullFloat64 `db:"geofence_lat"`
	GeofenceLng     sql.NullFloat64 `db:"geofence_lng"`
	GeofenceMessage sql.NullString  `db:"geofence_message"`
	CreatedAt       time.Time       `db:"created_at"`
}

// IsActive reports whether the tenant may accept visits
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// PushSlug returns the routing slug for push messages
func (t *Tenant) PushSlug() string {
	if t.Slug != "" {
		return t.Slug
	}
	return slug.Make(t.Name)
}

// GeofenceCenter returns the configured store location, or nil when the
// tenant does not restrict check-ins by distance.
func (t *Tenant) GeofenceCenter() *geo.Point {
	if !t.GeofenceLat.Valid || !t.GeofenceLng.Valid {
		return nil
	}
	return &geo.Point{Lat: t.GeofenceLat.Float64, Lng: t.GeofenceLng.Float64}
}
