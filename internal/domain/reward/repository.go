package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository persists rewards
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const insertReward = `
	INSERT INTO rewards (id, customer_id, tenant_id, program_id, code, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// InsertConsumingMembership stores a reward and moves the membership from
// active to used in one transaction, so a membership yields one reward.
func (r *Repository) InsertConsumingMembership(ctx context.Context, rw *Reward, membershipID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE memberships SET state = 'used', updated_at = now()
		WHERE id = $1 AND state = 'active'
	`, membershipID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMembershipUsed
	}

	if _, err := tx.ExecContext(ctx, insertReward,
		rw.ID, rw.CustomerID, rw.TenantID, rw.ProgramID, rw.Code, rw.Description, rw.CreatedAt); err != nil {
		return mapInsertError(err)
	}

	return tx.Commit()
}

func mapInsertError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %w", ErrCodeTaken, err)
	}
	return err
}
