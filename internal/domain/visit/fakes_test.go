package visit

import (
	"context"
	"database/sql"
	"sync"
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
)

// memLedger is an in-memory ledger implementing every store the engine uses
type memLedger struct {
	mu          sync.Mutex
	tenants     map[uuid.UUID]*tenant.Tenant
	customers   map[uuid.UUID]*customer.Customer
	programs    map[uuid.UUID]*program.Program
	stamps      map[uuid.UUID]*stamp.Stamp
	memberships map[uuid.UUID]*membership.Membership
	rewards     []*reward.Reward

	applyErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		tenants:     map[uuid.UUID]*tenant.Tenant{},
		customers:   map[uuid.UUID]*customer.Customer{},
		programs:    map[uuid.UUID]*program.Program{},
		stamps:      map[uuid.UUID]*stamp.Stamp{},
		memberships: map[uuid.UUID]*membership.Membership{},
	}
}

func (m *memLedger) findCustomer(tenantID uuid.UUID, phone string) *customer.Customer {
	for _, c := range m.customers {
		if c.TenantID == tenantID && c.Phone == phone {
			return c
		}
	}
	return nil
}

func (m *memLedger) hasStamp(customerID, tenantID uuid.UUID, day time.Time) bool {
	for _, s := range m.stamps {
		if s.CustomerID == customerID && s.TenantID == tenantID && s.VisitDay.Equal(day) {
			return true
		}
	}
	return false
}

// customers

func (m *memLedger) GetByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*customer.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.findCustomer(tenantID, phone)
	if c == nil {
		return nil, customer.ErrCustomerNotFound
	}
	return &customer.Record{Customer: *c, Tenant: *m.tenants[tenantID]}, nil
}

func (m *memLedger) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, customer.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memLedger) ApplyVisit(ctx context.Context, stampID, customerID uuid.UUID, u customer.VisitUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applyErr != nil {
		return m.applyErr
	}
	s, ok := m.stamps[stampID]
	if !ok || s.Applied || s.Orphaned {
		return customer.ErrStampNotPending
	}
	c := m.customers[customerID]
	s.Applied = true
	c.LifetimePoints += u.LifetimeDelta
	c.Streak = u.Streak
	c.Tier = u.Tier
	c.LastVisitAt = sql.NullTime{Time: u.VisitedAt, Valid: true}
	return nil
}

func (m *memLedger) UpdateGamification(ctx context.Context, customerID uuid.UUID, u customer.VisitUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.customers[customerID]
	c.Streak = u.Streak
	c.Tier = u.Tier
	c.LastVisitAt = sql.NullTime{Time: u.VisitedAt, Valid: true}
	return nil
}

// programs

func (m *memLedger) GetActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*program.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.programs[tenantID]
	if !ok || !p.IsActive {
		return nil, program.ErrNoActiveProgram
	}
	cp := *p
	return &cp, nil
}

// stamps

func (m *memLedger) Insert(ctx context.Context, s *stamp.Stamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasStamp(s.CustomerID, s.TenantID, s.VisitDay) {
		return stamp.ErrDuplicateVisit
	}
	cp := *s
	cp.CreatedAt = time.Now()
	m.stamps[s.ID] = &cp
	return nil
}

func (m *memLedger) RecordStampCard(ctx context.Context, tenantID uuid.UUID, phone, code string, day time.Time) (*stamp.CardResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.findCustomer(tenantID, phone)
	if c == nil {
		return nil, stamp.ErrCustomerNotFound
	}
	p, ok := m.programs[tenantID]
	if !ok || !p.IsActive || p.Type != program.TypeStampCard {
		return nil, stamp.ErrNoStampProgram
	}
	goal := p.Goal
	if goal < 1 {
		goal = 1
	}

	res := &stamp.CardResult{CustomerID: uuid.NullUUID{UUID: c.ID, Valid: true}, Goal: goal}
	if m.hasStamp(c.ID, tenantID, day) {
		res.Status = stamp.CardStatusDuplicate
		res.Points, res.Lifetime = c.CurrentPoints, c.LifetimePoints
		return res, nil
	}

	id := uuid.New()
	m.stamps[id] = &stamp.Stamp{ID: id, CustomerID: c.ID, TenantID: tenantID, VisitDay: day, ProgramType: p.Type, Applied: true}
	c.CurrentPoints++
	c.LifetimePoints++
	if c.LifetimePoints%goal == 0 {
		m.rewards = append(m.rewards, &reward.Reward{ID: uuid.New(), CustomerID: c.ID, TenantID: tenantID, ProgramID: p.ID, Code: code})
		c.CurrentPoints = 0
		res.RewardCode = sql.NullString{String: code, Valid: true}
	}

	res.Status = stamp.CardStatusOK
	res.StampID = uuid.NullUUID{UUID: id, Valid: true}
	res.Points, res.Lifetime = c.CurrentPoints, c.LifetimePoints
	return res, nil
}

func (m *memLedger) ListUnapplied(ctx context.Context, olderThan time.Time, limit int) ([]stamp.Stamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []stamp.Stamp
	for _, s := range m.stamps {
		if !s.Applied && !s.Orphaned && s.CreatedAt.Before(olderThan) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memLedger) MarkOrphaned(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stamps[id]
	if !ok || s.Applied || s.Orphaned {
		return stamp.ErrStampNotPending
	}
	s.Orphaned = true
	return nil
}

// memberships

func (m *memLedger) GetLatest(ctx context.Context, customerID, tenantID, programID uuid.UUID) (*membership.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *membership.Membership
	for _, ms := range m.memberships {
		if ms.CustomerID == customerID && ms.TenantID == tenantID && ms.ProgramID == programID {
			if latest == nil || ms.CreatedAt.After(latest.CreatedAt) {
				latest = ms
			}
		}
	}
	if latest == nil {
		return nil, membership.ErrMembershipNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memLedger) Create(ctx context.Context, ms *membership.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ms
	m.memberships[ms.ID] = &cp
	return nil
}

func (m *memLedger) ConsumeUse(ctx context.Context, id uuid.UUID) (*membership.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[id]
	if !ok || ms.State != membership.StateActive || ms.Uses() <= 0 {
		return nil, membership.ErrPassExhausted
	}
	ms.RemainingUses.Int64--
	if ms.RemainingUses.Int64 == 0 {
		ms.State = membership.StateUsed
	}
	cp := *ms
	return &cp, nil
}

func (m *memLedger) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, limit *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[id]
	if !ok || ms.State != membership.StateActive {
		return decimal.Zero, decimal.Zero, membership.ErrMembershipNotActive
	}
	previous := ms.Balance
	next := previous.Add(amount)
	if limit != nil {
		next = decimal.Max(previous, decimal.Min(next, *limit))
	}
	ms.Balance = next
	return next.Sub(previous), next, nil
}

func (m *memLedger) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*membership.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[id]
	if !ok || ms.State != membership.StateActive || ms.Balance.LessThan(amount) {
		return nil, membership.ErrInsufficientBalance
	}
	ms.Balance = ms.Balance.Sub(amount)
	if ms.Balance.IsZero() {
		ms.State = membership.StateUsed
	}
	cp := *ms
	return &cp, nil
}

func (m *memLedger) SetState(ctx context.Context, id uuid.UUID, from, to membership.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[id]
	if !ok || ms.State != from {
		return membership.ErrStateConflict
	}
	ms.State = to
	return nil
}

// rewards

func (m *memLedger) IssueCoupon(ctx context.Context, membershipID uuid.UUID, target reward.Target, description string) (*reward.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.memberships[membershipID]
	if !ok || ms.State != membership.StateActive {
		return nil, reward.ErrMembershipUsed
	}
	ms.State = membership.StateUsed
	code, _ := reward.GenerateCode(reward.PrefixCoupon)
	rw := &reward.Reward{ID: uuid.New(), CustomerID: target.CustomerID, TenantID: target.TenantID, ProgramID: target.ProgramID, Code: code, Description: description}
	m.rewards = append(m.rewards, rw)
	return rw, nil
}

func (m *memLedger) stampCount(customerID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.stamps {
		if s.CustomerID == customerID {
			n++
		}
	}
	return n
}

func (m *memLedger) customerRow(id uuid.UUID) customer.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.customers[id]
}

func (m *memLedger) onlyMembership() *membership.Membership {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.memberships {
		cp := *ms
		return &cp
	}
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *recordingNotifier) VisitRegistered(ctx context.Context, ev notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }
