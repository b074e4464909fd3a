package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/membership"
	"github.com/fidely/fidely-api/internal/domain/notification"
	"github.com/fidely/fidely-api/internal/domain/program"
	"github.com/fidely/fidely-api/internal/domain/reward"
	"github.com/fidely/fidely-api/internal/domain/stamp"
	"github.com/fidely/fidely-api/internal/domain/tenant"
	"github.com/fidely/fidely-api/internal/pkg/geo"
	"github.com/fidely/fidely-api/internal/pkg/logger"
)

// CustomerStore is the customer persistence used by the engine
type CustomerStore interface {
	GetByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*customer.Record, error)
	ApplyVisit(ctx context.Context, stampID, customerID uuid.UUID, u customer.VisitUpdate) error
	UpdateGamification(ctx context.Context, customerID uuid.UUID, u customer.VisitUpdate) error
}

// ProgramStore loads the tenant's active program
type ProgramStore interface {
	GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*program.Program, error)
}

// StampStore writes visit rows
type StampStore interface {
	Insert(ctx context.Context, s *stamp.Stamp) error
	RecordStampCard(ctx context.Context, tenantID uuid.UUID, phone, code string, day time.Time) (*stamp.CardResult, error)
}

// MembershipStore reads and mutates membership wallets
type MembershipStore interface {
	GetLatest(ctx context.Context, customerID, tenantID, programID uuid.UUID) (*membership.Membership, error)
	Create(ctx context.Context, m *membership.Membership) error
	ConsumeUse(ctx context.Context, id uuid.UUID) (*membership.Membership, error)
	Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, limit *decimal.Decimal) (credited, balance decimal.Decimal, err error)
	Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*membership.Membership, error)
	SetState(ctx context.Context, id uuid.UUID, from, to membership.State) error
}

// RewardIssuer issues coupon rewards
type RewardIssuer interface {
	IssueCoupon(ctx context.Context, membershipID uuid.UUID, target reward.Target, description string) (*reward.Reward, error)
}

// Notifier receives accepted visits for side effects
type Notifier interface {
	VisitRegistered(ctx context.Context, ev notification.Event)
}

// Visit is everything a program handler needs for one submission
type Visit struct {
	Request  Request
	Customer *customer.Customer
	Tenant   *tenant.Tenant
	Program  *program.Program
	Config   program.Config
	Now      time.Time
	Day      time.Time
}

// ProgramHandler applies one program type's state machine to a visit
type ProgramHandler interface {
	Apply(ctx context.Context, v *Visit) (*Outcome, error)
}

// Options tune the engine
type Options struct {
	GeofenceRadius float64
	Timeout        time.Duration
	Location       *time.Location
}

// Service routes visits to the program handler of the tenant's program
type Service struct {
	customers CustomerStore
	programs  ProgramStore
	limiter   Limiter
	notifier  Notifier
	handlers  map[program.Type]ProgramHandler
	opts      Options
	now       func() time.Time
}

// NewService wires the dispatch table. limiter and notifier may be nil.
func NewService(
	customers CustomerStore,
	programs ProgramStore,
	stamps StampStore,
	memberships MembershipStore,
	rewards RewardIssuer,
	limiter Limiter,
	notifier Notifier,
	opts Options,
) *Service {
	if opts.GeofenceRadius <= 0 {
		opts.GeofenceRadius = geo.DefaultRadiusMeters
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	l := &ledger{customers: customers, stamps: stamps, memberships: memberships, rewards: rewards}
	return &Service{
		customers: customers,
		programs:  programs,
		limiter:   limiter,
		notifier:  notifier,
		handlers: map[program.Type]ProgramHandler{
			program.TypeStampCard:      &stampCardHandler{l},
			program.TypeCashback:       &cashbackHandler{l},
			program.TypeMultipass:      &multipassHandler{l},
			program.TypeTieredDiscount: &tieredDiscountHandler{l},
			program.TypeMembership:     &membershipHandler{l},
			program.TypeAffiliation:    &affiliationHandler{l},
			program.TypeCoupon:         &couponHandler{l},
			program.TypeGiftCard:       &giftCardHandler{l},
		},
		opts: opts,
		now:  time.Now,
	}
}

// Register processes one visit: admission checks, then the program
// handler, then side effects.
func (s *Service) Register(ctx context.Context, req Request) (*Outcome, error) {
	req.Phone = customer.NormalizePhone(req.Phone)
	if req.Phone == "" {
		return nil, ErrPhoneRequired
	}
	// balances are kept in cents
	if req.Amount != nil {
		cents := req.Amount.Round(2)
		req.Amount = &cents
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, limiterKey(req.TenantID, req.Phone))
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).Msg("Visit limiter unavailable, allowing request")
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	rec, err := s.customers.GetByPhone(ctx, req.TenantID, req.Phone)
	if err != nil {
		if errors.Is(err, customer.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if !rec.Tenant.IsActive() {
		return nil, ErrTenantInactive
	}

	prog, err := s.programs.GetActiveByTenant(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, program.ErrNoActiveProgram) {
			return nil, ErrNoActiveProgram
		}
		return nil, fmt.Errorf("load program: %w", err)
	}

	if err := checkGeofence(&rec.Tenant, req.Location, s.opts.GeofenceRadius); err != nil {
		return nil, err
	}

	handler, ok := s.handlers[prog.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProgramType, prog.Type)
	}

	now := s.now()
	v := &Visit{
		Request:  req,
		Customer: &rec.Customer,
		Tenant:   &rec.Tenant,
		Program:  prog,
		Config:   program.ResolveConfig(prog.Type, prog.Config),
		Now:      now,
		Day:      stamp.Day(now, s.opts.Location),
	}

	out, err := handler.Apply(ctx, v)
	if err != nil {
		logger.FromContext(ctx).Warn().
			Err(err).
			Str("tenant_id", req.TenantID.String()).
			Str("program_type", string(prog.Type)).
			Msg("Visit rejected")
		return nil, err
	}

	out.Response.ProgramType = prog.Type
	out.Response.CustomerID = rec.ID.String()

	logger.FromContext(ctx).Info().
		Str("tenant_id", req.TenantID.String()).
		Str("customer_id", rec.ID.String()).
		Str("program_type", string(prog.Type)).
		Bool("duplicate", out.Duplicate).
		Msg("Visit registered")

	if !out.Duplicate && s.notifier != nil {
		s.notifier.VisitRegistered(ctx, notificationEvent(v, out))
	}

	return out, nil
}

func checkGeofence(t *tenant.Tenant, client *geo.Point, radius float64) error {
	err := geo.Check(t.GeofenceCenter(), client, radius)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, geo.ErrLocationRequired):
		return fmt.Errorf("%w: %w", ErrLocationRequired, err)
	case errors.Is(err, geo.ErrLocationInvalid):
		return fmt.Errorf("%w: %w", ErrLocationInvalid, err)
	case errors.Is(err, geo.ErrTooFar):
		return fmt.Errorf("%w: %w", ErrTooFar, err)
	default:
		return err
	}
}

func notificationEvent(v *Visit, out *Outcome) notification.Event {
	r := out.Response
	ev := notification.Event{
		StampID:     out.StampID,
		CustomerID:  v.Customer.ID,
		TenantID:    v.Tenant.ID,
		TenantName:  v.Tenant.Name,
		TenantSlug:  v.Tenant.PushSlug(),
		ProgramType: v.Program.Type,
	}
	if r.PointsActuales != nil {
		ev.Points = *r.PointsActuales
	}
	if r.PointsMeta != nil {
		ev.Goal = *r.PointsMeta
	}
	if r.RewardCode != nil {
		ev.RewardCode = *r.RewardCode
	}
	if r.Cupon != nil {
		ev.RewardCode = r.Cupon.QRCode
	}
	if r.CashbackGanado != nil {
		ev.Earned = *r.CashbackGanado
	}
	if r.SaldoTotal != nil {
		ev.Balance = *r.SaldoTotal
	}
	if r.Saldo != nil {
		ev.Balance = *r.Saldo
	}
	if r.Consumido != nil {
		ev.Consumed = *r.Consumido
	}
	if r.UsosRestantes != nil {
		ev.RemainingUses = *r.UsosRestantes
	}
	if r.PackCompletado != nil {
		ev.PackCompleted = *r.PackCompletado
	}
	if r.DescuentoActual != nil {
		ev.Discount = *r.DescuentoActual
	}
	if r.SubioDeNivel != nil {
		ev.LeveledUp = *r.SubioDeNivel
	}
	return ev
}
