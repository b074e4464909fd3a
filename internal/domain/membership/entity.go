package membership

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the lifecycle of a membership. Transitions out of active are
// one-way.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateUsed    State = "used"
)

// Membership is the wallet backing non stamp-card programs: remaining uses
// for multipass, balance for cashback and gift-card, validity for
// membership and coupon programs.
type Membership struct {
	ID            uuid.UUID       `db:"id"`
	CustomerID    uuid.UUID       `db:"customer_id"`
	TenantID      uuid.UUID       `db:"tenant_id"`
	ProgramID     uuid.UUID       `db:"program_id"`
	State         State           `db:"state"`
	RemainingUses sql.NullInt64   `db:"remaining_uses"`
	Balance       decimal.Decimal `db:"balance"`
	StartsAt      time.Time       `db:"starts_at"`
	EndsAt        sql.NullTime    `db:"ends_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// New builds an active membership starting at now. validityDays <= 0
// means no expiry.
func New(customerID, tenantID, programID uuid.UUID, now time.Time, validityDays int) *Membership {
	m := &Membership{
		ID:         uuid.New(),
		CustomerID: customerID,
		TenantID:   tenantID,
		ProgramID:  programID,
		State:      StateActive,
		Balance:    decimal.Zero,
		StartsAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if validityDays > 0 {
		m.EndsAt = sql.NullTime{Time: now.AddDate(0, 0, validityDays), Valid: true}
	}
	return m
}

// IsExpired reports whether the end date has passed at now
func (m *Membership) IsExpired(now time.Time) bool {
	return m.EndsAt.Valid && now.After(m.EndsAt.Time)
}

// Uses returns the remaining uses, zero when not tracked
func (m *Membership) Uses() int {
	if !m.RemainingUses.Valid {
		return 0
	}
	return int(m.RemainingUses.Int64)
}

// ExpiresAt returns the end date or nil
func (m *Membership) ExpiresAt() *time.Time {
	if !m.EndsAt.Valid {
		return nil
	}
	t := m.EndsAt.Time
	return &t
}
