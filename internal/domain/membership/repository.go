package membership

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Repository handles membership persistence. Every mutation is a single-row
// conditional update so concurrent visits cannot push counters below zero.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const membershipColumns = `id, customer_id, tenant_id, program_id, state, remaining_uses, balance,
	starts_at, ends_at, created_at, updated_at`

// GetLatest returns the newest membership of a customer for a program
func (r *Repository) GetLatest(ctx context.Context, customerID, tenantID, programID uuid.UUID) (*Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE customer_id = $1 AND tenant_id = $2 AND program_id = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	var m Membership
	if err := r.db.GetContext(ctx, &m, query, customerID, tenantID, programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create inserts a membership
func (r *Repository) Create(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO memberships (id, customer_id, tenant_id, program_id, state, remaining_uses, balance,
			starts_at, ends_at, created_at, updated_at)
		VALUES (:id, :customer_id, :tenant_id, :program_id, :state, :remaining_uses, :balance,
			:starts_at, :ends_at, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

// ConsumeUse takes one use off an active pass and marks it used when the
// last one is consumed.
func (r *Repository) ConsumeUse(ctx context.Context, id uuid.UUID) (*Membership, error) {
	query := `
		UPDATE memberships
		SET remaining_uses = remaining_uses - 1,
		    state = CASE WHEN remaining_uses - 1 = 0 THEN 'used' ELSE state END,
		    updated_at = now()
		WHERE id = $1 AND state = 'active' AND remaining_uses > 0
		RETURNING ` + membershipColumns
	var m Membership
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassExhausted
		}
		return nil, err
	}
	return &m, nil
}

// Credit adds amount to an active membership balance. With a non-nil
// limit the balance never grows past it. Returns the amount actually
// credited and the new balance.
func (r *Repository) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, limit *decimal.Decimal) (credited, balance decimal.Decimal, err error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}

	var limitArg interface{}
	if limit != nil {
		limitArg = limit.String()
	}

	query := `
		WITH cur AS (
			SELECT id, balance FROM memberships
			WHERE id = $1 AND state = 'active'
			FOR UPDATE
		)
		UPDATE memberships m
		SET balance = CASE
		        WHEN $3::numeric IS NULL THEN cur.balance + $2::numeric
		        ELSE GREATEST(cur.balance, LEAST(cur.balance + $2::numeric, $3::numeric))
		    END,
		    updated_at = now()
		FROM cur
		WHERE m.id = cur.id
		RETURNING cur.balance, m.balance
	`
	var previous decimal.Decimal
	if err := r.db.QueryRowxContext(ctx, query, id, amount.String(), limitArg).Scan(&previous, &balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, decimal.Zero, ErrMembershipNotActive
		}
		return decimal.Zero, decimal.Zero, err
	}
	return balance.Sub(previous), balance, nil
}

// Debit subtracts amount from an active membership balance and marks it
// used when the balance reaches zero.
func (r *Repository) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Membership, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	query := `
		UPDATE memberships
		SET balance = balance - $2::numeric,
		    state = CASE WHEN balance - $2::numeric = 0 THEN 'used' ELSE state END,
		    updated_at = now()
		WHERE id = $1 AND state = 'active' AND balance >= $2::numeric
		RETURNING ` + membershipColumns
	var m Membership
	if err := r.db.GetContext(ctx, &m, query, id, amount.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}
	return &m, nil
}

// SetState moves a membership from one state to another
func (r *Repository) SetState(ctx context.Context, id uuid.UUID, from, to State) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStateConflict
	}
	return nil
}

// ExpireOverdue marks every active membership whose end date has passed as
// expired. Returns the number of rows changed.
func (r *Repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE memberships SET state = 'expired', updated_at = now()
		WHERE state = 'active' AND ends_at IS NOT NULL AND ends_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
