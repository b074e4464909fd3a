package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository handles customer database operations
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetByPhone returns the customer registered with phone at tenantID,
// together with its tenant.
func (r *Repository) GetByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*Record, error) {
	query := `
		SELECT c.id, c.tenant_id, c.phone, c.name, c.current_points, c.lifetime_points,
		       c.rewards_redeemed, c.tier, c.streak, c.last_visit_at, c.created_at, c.updated_at,
		       t.id               AS "tenant.id",
		       t.name             AS "tenant.name",
		       t.slug             AS "tenant.slug",
		       t.status           AS "tenant.status",
		       t.geofence_lat     AS "tenant.geofence_lat",
		       t.geofence_lng     AS "tenant.geofence_lng",
		       t.geofence_message AS "tenant.geofence_message",
		       t.created_at       AS "tenant.created_at"
		FROM customers c
		JOIN tenants t ON t.id = c.tenant_id
		WHERE c.tenant_id = $1 AND c.phone = $2
	`
	var rec Record
	if err := r.db.GetContext(ctx, &rec, query, tenantID, NormalizePhone(phone)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// GetByID returns a customer by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	var c Customer
	err := r.db.GetContext(ctx, &c, `SELECT * FROM customers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyVisit writes the visit counters and marks the visit row applied in
// one transaction. The visit row must still be pending.
func (r *Repository) ApplyVisit(ctx context.Context, stampID, customerID uuid.UUID, u VisitUpdate) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE stamps SET applied = true
		WHERE id = $1 AND customer_id = $2 AND NOT applied AND NOT orphaned
	`, stampID, customerID)
	if err != nil {
		return fmt.Errorf("mark visit applied: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStampNotPending
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET lifetime_points = lifetime_points + $2,
		    streak          = $3,
		    tier            = $4,
		    last_visit_at   = $5,
		    updated_at      = now()
		WHERE id = $1
	`, customerID, u.LifetimeDelta, u.Streak, string(u.Tier), u.VisitedAt)
	if err != nil {
		return fmt.Errorf("update customer counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCustomerNotFound
	}

	return tx.Commit()
}

// UpdateGamification stores streak, tier and last visit without touching
// point counters. Used by the stamp-card path whose counters are written by
// the store function.
func (r *Repository) UpdateGamification(ctx context.Context, customerID uuid.UUID, u VisitUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET streak = $2, tier = $3, last_visit_at = $4, updated_at = now()
		WHERE id = $1
	`, customerID, u.Streak, string(u.Tier), u.VisitedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
