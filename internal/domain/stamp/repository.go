package stamp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const rewardCodeConstraint = "rewards_code_key"

// Repository handles visit rows and the atomic stamp-card path
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert records a visit. A second row for the same customer, tenant and
// day fails with ErrDuplicateVisit.
func (r *Repository) Insert(ctx context.Context, s *Stamp) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stamps (id, customer_id, tenant_id, visit_day, program_type)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.CustomerID, s.TenantID, s.VisitDay.Format("2006-01-02"), string(s.ProgramType))
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

func mapInsertError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		if strings.Contains(strings.ToLower(pqErr.Constraint), rewardCodeConstraint) {
			return fmt.Errorf("%w: %w", ErrRewardCodeTaken, err)
		}
		return fmt.Errorf("%w: %w", ErrDuplicateVisit, err)
	default:
		return err
	}
}

// RecordStampCard runs the stamp-card visit as one store transaction: daily
// visit row, counter increment, and a reward with code when the lifetime
// total reaches a multiple of the goal. A duplicate day is reported through
// the result, not as an error.
func (r *Repository) RecordStampCard(ctx context.Context, tenantID uuid.UUID, phone, code string, day time.Time) (*CardResult, error) {
	var res CardResult
	err := r.db.GetContext(ctx, &res, `
		SELECT status, stamp_id, customer_id, points, lifetime, goal, reward_code
		FROM record_stamp_visit($1, $2, $3, $4)
	`, tenantID, phone, day.Format("2006-01-02"), code)
	if err != nil {
		return nil, mapInsertError(err)
	}

	switch res.Status {
	case CardStatusOK, CardStatusDuplicate:
		return &res, nil
	case CardStatusCustomerNotFound:
		return nil, ErrCustomerNotFound
	case CardStatusNoActiveProgram:
		return nil, ErrNoStampProgram
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
	}
}

// MarkOrphaned flags a pending visit row whose counter update never happened.
// Applied rows are flagged by the customer counter update itself.
func (r *Repository) MarkOrphaned(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stamps SET orphaned = true
		WHERE id = $1 AND NOT applied AND NOT orphaned
	`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStampNotPending
	}
	return nil
}

// ListUnapplied returns pending visit rows created before olderThan
func (r *Repository) ListUnapplied(ctx context.Context, olderThan time.Time, limit int) ([]Stamp, error) {
	if limit <= 0 {
		limit = 100
	}
	var stamps []Stamp
	err := r.db.SelectContext(ctx, &stamps, `
		SELECT * FROM stamps
		WHERE NOT applied AND NOT orphaned AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan, limit)
	return stamps, err
}
