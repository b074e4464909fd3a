package review

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Request is a deferred "leave us a review" message scheduled after a visit
type Request struct {
	ID         uuid.UUID     `db:"id"`
	CustomerID uuid.UUID     `db:"customer_id"`
	TenantID   uuid.UUID     `db:"tenant_id"`
	StampID    uuid.NullUUID `db:"stamp_id"`
	SendAt     time.Time     `db:"send_at"`
	SentAt     sql.NullTime  `db:"sent_at"`
	CreatedAt  time.Time     `db:"created_at"`
}

// DueRequest is a pending request with the tenant fields needed to
// compose the message
type DueRequest struct {
	Request
	TenantName string `db:"tenant_name"`
	TenantSlug string `db:"tenant_slug"`
}
