package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository handles review request database operations
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new review repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Schedule inserts a review request to be sent at req.SendAt
func (r *Repository) Schedule(ctx context.Context, req *Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	query := `
		INSERT INTO review_requests (id, customer_id, tenant_id, stamp_id, send_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, req.ID, req.CustomerID, req.TenantID, req.StampID, req.SendAt)
	return err
}

// ListDue returns unsent requests whose send time has passed
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]DueRequest, error) {
	query := `
		SELECT rr.id, rr.customer_id, rr.tenant_id, rr.stamp_id, rr.send_at, rr.sent_at, rr.created_at,
		       t.name AS tenant_name, t.slug AS tenant_slug
		FROM review_requests rr
		JOIN tenants t ON t.id = rr.tenant_id
		WHERE rr.sent_at IS NULL AND rr.send_at <= $1
		ORDER BY rr.send_at
		LIMIT $2
	`
	var due []DueRequest
	err := r.db.SelectContext(ctx, &due, query, now, limit)
	return due, err
}

// MarkSent records that a request was handed to the push queue
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE review_requests SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`, id, at)
	return err
}
