package program

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository reads loyalty programs
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetActiveByTenant returns the tenant's single active program
func (r *Repository) GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*Program, error) {
	query := `
		SELECT id, tenant_id, type, goal, reward_description, config, is_active, created_at
		FROM programs
		WHERE tenant_id = $1 AND is_active = true
		LIMIT 1
	`
	var p Program
	if err := r.db.GetContext(ctx, &p, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveProgram
		}
		return nil, err
	}
	return &p, nil
}
