package reward

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	PrefixStampCard = "PREMIO"
	PrefixCoupon    = "CUPON"
)

// Reward is a one-time redemption artifact
type Reward struct {
	ID          uuid.UUID    `db:"id"`
	CustomerID  uuid.UUID    `db:"customer_id"`
	TenantID    uuid.UUID    `db:"tenant_id"`
	ProgramID   uuid.UUID    `db:"program_id"`
	Code        string       `db:"code"`
	Description string       `db:"description"`
	RedeemedAt  sql.NullTime `db:"redeemed_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

// Target identifies who a reward is issued to
type Target struct {
	CustomerID uuid.UUID
	TenantID   uuid.UUID
	ProgramID  uuid.UUID
}
