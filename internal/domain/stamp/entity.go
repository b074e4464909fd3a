package stamp

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fidely/fidely-api/internal/domain/program"
)

// Stamp is the audit and idempotency row of one accepted visit. At most one
// row exists per customer, tenant and calendar day.
type Stamp struct {
	ID          uuid.UUID    `db:"id"`
	CustomerID  uuid.UUID    `db:"customer_id"`
	TenantID    uuid.UUID    `db:"tenant_id"`
	VisitDay    time.Time    `db:"visit_day"`
	ProgramType program.Type `db:"program_type"`
	Applied     bool         `db:"applied"`
	Orphaned    bool         `db:"orphaned"`
	CreatedAt   time.Time    `db:"created_at"`
}

// Day returns the calendar day of now in loc, as midnight UTC so it maps
// to a DATE column unchanged.
func Day(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Status values returned by the stamp-card store function
const (
	CardStatusOK               = "ok"
	CardStatusDuplicate        = "duplicate"
	CardStatusCustomerNotFound = "customer_not_found"
	CardStatusNoActiveProgram  = "no_active_program"
)

// CardResult is the outcome of one stamp-card visit
type CardResult struct {
	Status     string         `db:"status"`
	StampID    uuid.NullUUID  `db:"stamp_id"`
	CustomerID uuid.NullUUID  `db:"customer_id"`
	Points     int            `db:"points"`
	Lifetime   int            `db:"lifetime"`
	Goal       int            `db:"goal"`
	RewardCode sql.NullString `db:"reward_code"`
}

// Duplicate reports whether the customer already had a visit that day
func (r *CardResult) Duplicate() bool {
	return r.Status == CardStatusDuplicate
}
