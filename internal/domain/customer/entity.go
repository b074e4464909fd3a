package customer

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fidely/fidely-api/internal/domain/gamification"
	"github.com/fidely/fidely-api/internal/domain/tenant"
)

// Customer is one phone number enrolled at one tenant
type Customer struct {
	ID              uuid.UUID         `db:"id"`
	TenantID        uuid.UUID         `db:"tenant_id"`
	Phone           string            `db:"phone"`
	Name            string            `db:"name"`
	CurrentPoints   int               `db:"current_points"`
	LifetimePoints  int               `db:"lifetime_points"`
	RewardsRedeemed int               `db:"rewards_redeemed"`
	Tier            gamification.Tier `db:"tier"`
	Streak          int               `db:"streak"`
	LastVisitAt     sql.NullTime      `db:"last_visit_at"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

// LastVisit returns the last visit time or nil
func (c *Customer) LastVisit() *time.Time {
	if !c.LastVisitAt.Valid {
		return nil
	}
	t := c.LastVisitAt.Time
	return &t
}

// Record is a customer loaded together with its tenant
type Record struct {
	Customer
	Tenant tenant.Tenant `db:"tenant"`
}

// VisitUpdate carries the counters written after an accepted visit
type VisitUpdate struct {
	LifetimeDelta int
	Streak        int
	Tier          gamification.Tier
	VisitedAt     time.Time
}

// NewVisitUpdate computes streak and tier for a visit at now from the
// customer snapshot read before the write.
func NewVisitUpdate(c *Customer, lifetimeDelta int, now time.Time) VisitUpdate {
	return VisitUpdate{
		LifetimeDelta: lifetimeDelta,
		Streak:        gamification.Streak(c.LastVisit(), c.Streak, now),
		Tier:          gamification.TierFor(c.LifetimePoints + lifetimeDelta),
		VisitedAt:     now,
	}
}

var phoneReplacer = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone strips separators and keeps a leading plus sign
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	plus := strings.HasPrefix(phone, "+")
	digits := phoneReplacer.Replace(strings.TrimPrefix(phone, "+"))
	if plus {
		return "+" + digits
	}
	return digits
}
