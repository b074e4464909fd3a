package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/membership"
	"github.com/fidely/fidely-api/internal/domain/stamp"
	"github.com/fidely/fidely-api/internal/pkg/logger"
)

// ledger holds the stores shared by every program handler
type ledger struct {
	customers   CustomerStore
	stamps      StampStore
	memberships MembershipStore
	rewards     RewardIssuer
}

// recordVisit inserts today's visit row. duplicate is true when the row
// already exists; the returned ID is then zero.
func (l *ledger) recordVisit(ctx context.Context, v *Visit) (stampID uuid.UUID, duplicate bool, err error) {
	s := &stamp.Stamp{
		ID:          uuid.New(),
		CustomerID:  v.Customer.ID,
		TenantID:    v.Tenant.ID,
		VisitDay:    v.Day,
		ProgramType: v.Program.Type,
	}
	if err := l.stamps.Insert(ctx, s); err != nil {
		if errors.Is(err, stamp.ErrDuplicateVisit) {
			return uuid.Nil, true, nil
		}
		return uuid.Nil, false, fmt.Errorf("insert visit row: %w", err)
	}
	return s.ID, false, nil
}

// recordPurchase records the visit row for programs that take several
// purchases a day. A repeat day is logged and the purchase still goes
// through with a zero stamp ID.
func (l *ledger) recordPurchase(ctx context.Context, v *Visit) (uuid.UUID, error) {
	stampID, duplicate, err := l.recordVisit(ctx, v)
	if err != nil {
		return uuid.Nil, err
	}
	if duplicate {
		logger.FromContext(ctx).Info().
			Str("customer_id", v.Customer.ID.String()).
			Str("program_type", string(v.Program.Type)).
			Str("visit_day", v.Day.Format("2006-01-02")).
			Msg("Repeat visit today, applying purchase")
	}
	return stampID, nil
}

// applyVisit writes lifetime delta and gamification and marks the visit
// row applied.
func (l *ledger) applyVisit(ctx context.Context, v *Visit, stampID uuid.UUID, lifetimeDelta int) (customer.VisitUpdate, error) {
	u := customer.NewVisitUpdate(v.Customer, lifetimeDelta, v.Now)
	if err := l.customers.ApplyVisit(ctx, stampID, v.Customer.ID, u); err != nil {
		return u, fmt.Errorf("apply visit counters: %w", err)
	}
	return u, nil
}

// applyAfterTransfer runs applyVisit for value programs whose transfer is
// already committed. A failure is logged and the visit row is left for the
// sweeper; the transfer result still goes back to the caller.
func (l *ledger) applyAfterTransfer(ctx context.Context, v *Visit, stampID uuid.UUID, resp *VisitResponse) {
	if stampID == uuid.Nil {
		return
	}
	u, err := l.applyVisit(ctx, v, stampID, 0)
	if err != nil {
		logger.FromContext(ctx).Error().
			Err(err).
			Str("stamp_id", stampID.String()).
			Str("customer_id", v.Customer.ID.String()).
			Msg("Visit counters not updated after transfer")
		return
	}
	withGamification(resp, u)
}

// loadOrCreate returns the customer's latest membership for the program,
// creating one with init when none exists.
func (l *ledger) loadOrCreate(ctx context.Context, v *Visit, init func(m *membership.Membership)) (*membership.Membership, error) {
	m, err := l.memberships.GetLatest(ctx, v.Customer.ID, v.Tenant.ID, v.Program.ID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, membership.ErrMembershipNotFound) {
		return nil, fmt.Errorf("load membership: %w", err)
	}

	m = membership.New(v.Customer.ID, v.Tenant.ID, v.Program.ID, v.Now, v.Config.ValidityDays)
	if init != nil {
		init(m)
	}
	if err := l.memberships.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return m, nil
}

// load returns the latest membership or ErrNoActiveMembership
func (l *ledger) load(ctx context.Context, v *Visit) (*membership.Membership, error) {
	m, err := l.memberships.GetLatest(ctx, v.Customer.ID, v.Tenant.ID, v.Program.ID)
	if err != nil {
		if errors.Is(err, membership.ErrMembershipNotFound) {
			return nil, ErrNoActiveMembership
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return m, nil
}

// checkExpiry fails with ErrMembershipExpired when m is expired, moving an
// overdue active membership to expired on the way.
func (l *ledger) checkExpiry(ctx context.Context, v *Visit, m *membership.Membership) error {
	if m.State == membership.StateExpired {
		return ErrMembershipExpired
	}
	if m.State != membership.StateActive || !m.IsExpired(v.Now) {
		return nil
	}
	if err := l.memberships.SetState(ctx, m.ID, membership.StateActive, membership.StateExpired); err != nil &&
		!errors.Is(err, membership.ErrStateConflict) {
		logger.FromContext(ctx).Warn().Err(err).Str("membership_id", m.ID.String()).Msg("Failed to expire membership")
	}
	return ErrMembershipExpired
}

func withGamification(resp *VisitResponse, u customer.VisitUpdate) {
	resp.Nivel = string(u.Tier)
	resp.Racha = u.Streak
}

func duplicateResponse() VisitResponse {
	return VisitResponse{Message: "Ya registraste tu visita de hoy"}
}
