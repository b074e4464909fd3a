package visit

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/membership"
	"github.com/fidely/fidely-api/internal/domain/program"
	"github.com/fidely/fidely-api/internal/domain/tenant"
	"github.com/fidely/fidely-api/internal/pkg/geo"
	"github.com/fidely/fidely-api/internal/pkg/logger"
)

const testPhone = "+56912345678"

type fixture struct {
	ledger     *memLedger
	notifier   *recordingNotifier
	svc        *Service
	tenantID   uuid.UUID
	customerID uuid.UUID
	programID  uuid.UUID
	now        time.Time
}

func newFixture(t *testing.T, typ program.Type, config string, goal int) *fixture {
	t.Helper()

	l := newMemLedger()
	fx := &fixture{
		ledger:     l,
		notifier:   &recordingNotifier{},
		tenantID:   uuid.New(),
		customerID: uuid.New(),
		programID:  uuid.New(),
		now:        time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC),
	}

	l.tenants[fx.tenantID] = &tenant.Tenant{ID: fx.tenantID, Name: "Café Central", Status: tenant.StatusActive}
	l.customers[fx.customerID] = &customer.Customer{ID: fx.customerID, TenantID: fx.tenantID, Phone: testPhone}
	l.programs[fx.tenantID] = &program.Program{
		ID:                fx.programID,
		TenantID:          fx.tenantID,
		Type:              typ,
		Goal:              goal,
		RewardDescription: "Café gratis",
		Config:            []byte(config),
		IsActive:          true,
	}

	fx.svc = NewService(l, l, l, l, l, nil, fx.notifier, Options{Location: time.UTC})
	fx.svc.now = func() time.Time { return fx.now }
	return fx
}

func (fx *fixture) register(amount string) (*Outcome, error) {
	return fx.registerCtx(context.Background(), amount)
}

func (fx *fixture) registerCtx(ctx context.Context, amount string) (*Outcome, error) {
	req := Request{TenantID: fx.tenantID, Phone: testPhone}
	if amount != "" {
		a := decimal.RequireFromString(amount)
		req.Amount = &a
	}
	return fx.svc.Register(ctx, req)
}

func (fx *fixture) nextDay() {
	fx.now = fx.now.AddDate(0, 0, 1)
}

func (fx *fixture) addMembership(mutate func(m *membership.Membership)) {
	m := membership.New(fx.customerID, fx.tenantID, fx.programID, fx.now.AddDate(0, 0, -1), 30)
	mutate(m)
	fx.ledger.memberships[m.ID] = m
}

func TestStampCardCounters(t *testing.T) {
	const goal = 4
	fx := newFixture(t, program.TypeStampCard, "", goal)

	for n := 1; n <= 10; n++ {
		out, err := fx.register("")
		require.NoError(t, err)
		require.False(t, out.Duplicate)
		assert.Equal(t, n%goal, *out.Response.PointsActuales)
		assert.Equal(t, goal, *out.Response.PointsMeta)
		assert.Equal(t, n%goal == 0, out.Response.RewardCode != nil, "visit %d", n)
		fx.nextDay()
	}

	c := fx.ledger.customerRow(fx.customerID)
	assert.Equal(t, 10, c.LifetimePoints)
	assert.Equal(t, 10%goal, c.CurrentPoints)
	assert.Len(t, fx.ledger.rewards, 10/goal)
	assert.Equal(t, 10, fx.notifier.count())
}

func TestStampCardConcurrentAtGoal(t *testing.T) {
	fx := newFixture(t, program.TypeStampCard, "", 5)
	fx.ledger.customers[fx.customerID].CurrentPoints = 4
	fx.ledger.customers[fx.customerID].LifetimePoints = 4

	var wg sync.WaitGroup
	var mu sync.Mutex
	codes, duplicates := 0, 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := fx.register("")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if out.Response.RewardCode != nil {
				codes++
			}
			if out.Duplicate {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, codes)
	assert.Equal(t, 1, duplicates)
	assert.Len(t, fx.ledger.rewards, 1)
}

func TestOncePerDayTypesRejectSecondVisit(t *testing.T) {
	for _, typ := range []program.Type{program.TypeStampCard, program.TypeTieredDiscount, program.TypeAffiliation, program.TypeMembership} {
		t.Run(string(typ), func(t *testing.T) {
			fx := newFixture(t, typ, "", 10)
			if typ == program.TypeMembership {
				fx.addMembership(func(m *membership.Membership) {})
			}

			first, err := fx.register("")
			require.NoError(t, err)
			assert.False(t, first.Duplicate)

			second, err := fx.register("")
			require.NoError(t, err)
			assert.True(t, second.Duplicate)
			assert.Equal(t, uuid.Nil, second.StampID)

			assert.Equal(t, 1, fx.ledger.stampCount(fx.customerID))
			assert.Equal(t, 1, fx.notifier.count(), "duplicate must not fire side effects")
			assert.Equal(t, 1, fx.ledger.customerRow(fx.customerID).LifetimePoints)
		})
	}
}

func TestCashbackCap(t *testing.T) {
	fx := newFixture(t, program.TypeCashback, `{"porcentaje": 5, "tope_mensual": 100}`, 0)
	fx.addMembership(func(m *membership.Membership) {
		m.Balance = decimal.NewFromInt(95)
		m.EndsAt.Valid = false
	})

	out, err := fx.register("1000")
	require.NoError(t, err)
	assert.True(t, out.Response.CashbackGanado.Equal(decimal.NewFromInt(5)), "earned %s", out.Response.CashbackGanado)
	assert.True(t, out.Response.SaldoTotal.Equal(decimal.NewFromInt(100)))

	// same day, at the cap: value transfer still processed, nothing credited
	out, err = fx.register("1000")
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.True(t, out.Response.CashbackGanado.IsZero())
	assert.Equal(t, 1, fx.ledger.stampCount(fx.customerID))
}

func TestCashbackCreatesWalletAndRounds(t *testing.T) {
	fx := newFixture(t, program.TypeCashback, `{"porcentaje": 3}`, 0)

	out, err := fx.register("333")
	require.NoError(t, err)
	assert.Equal(t, "9.99", out.Response.CashbackGanado.StringFixed(2))

	m := fx.ledger.onlyMembership()
	require.NotNil(t, m)
	assert.False(t, m.EndsAt.Valid, "cashback wallet does not expire")
}

func TestRepeatPurchaseIsLogged(t *testing.T) {
	fx := newFixture(t, program.TypeCashback, `{"porcentaje": 5}`, 0)

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background(), &l)

	first, err := fx.registerCtx(ctx, "100")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.StampID)
	assert.NotContains(t, buf.String(), "Repeat visit today")

	second, err := fx.registerCtx(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, second.StampID)
	assert.Equal(t, "5.00", second.Response.CashbackGanado.StringFixed(2), "repeat purchase still credits")
	assert.Contains(t, buf.String(), "Repeat visit today")
	assert.Contains(t, buf.String(), `"program_type":"`+string(program.TypeCashback)+`"`)
}

func TestCashbackRequiresAmount(t *testing.T) {
	fx := newFixture(t, program.TypeCashback, "", 0)

	for _, amount := range []string{"", "0", "-5"} {
		_, err := fx.register(amount)
		assert.ErrorIs(t, err, ErrAmountRequired, "amount %q", amount)
	}
	assert.Equal(t, 0, fx.ledger.stampCount(fx.customerID))
}

func TestMultipassConsumption(t *testing.T) {
	fx := newFixture(t, program.TypeMultipass, `{"usos_totales": 3}`, 0)

	for want := 2; want >= 0; want-- {
		out, err := fx.register("")
		require.NoError(t, err)
		assert.Equal(t, want, *out.Response.UsosRestantes)
		assert.Equal(t, want == 0, *out.Response.PackCompletado)
	}

	m := fx.ledger.onlyMembership()
	assert.Equal(t, membership.StateUsed, m.State)
	assert.Equal(t, 0, m.Uses())

	_, err := fx.register("")
	assert.ErrorIs(t, err, ErrPassExhausted)
	assert.Equal(t, 0, fx.ledger.onlyMembership().Uses())
}

func TestMultipassExpired(t *testing.T) {
	fx := newFixture(t, program.TypeMultipass, "", 0)
	fx.addMembership(func(m *membership.Membership) {
		m.RemainingUses = sql.NullInt64{Int64: 5, Valid: true}
		m.EndsAt = sql.NullTime{Time: fx.now.Add(-time.Hour), Valid: true}
	})

	_, err := fx.register("")
	assert.ErrorIs(t, err, ErrMembershipExpired)
	assert.Equal(t, membership.StateExpired, fx.ledger.onlyMembership().State)
}

func TestGeofence(t *testing.T) {
	fx := newFixture(t, program.TypeAffiliation, "", 0)
	fx.ledger.tenants[fx.tenantID].GeofenceLat = sql.NullFloat64{Float64: -33.4489, Valid: true}
	fx.ledger.tenants[fx.tenantID].GeofenceLng = sql.NullFloat64{Float64: -70.6693, Valid: true}

	_, err := fx.svc.Register(context.Background(), Request{TenantID: fx.tenantID, Phone: testPhone})
	assert.ErrorIs(t, err, ErrLocationRequired)

	_, err = fx.svc.Register(context.Background(), Request{
		TenantID: fx.tenantID, Phone: testPhone, Location: &geo.Point{Lat: -33.4444, Lng: -70.6693},
	})
	require.ErrorIs(t, err, ErrTooFar)
	var tooFar *geo.TooFarError
	require.True(t, errors.As(err, &tooFar))
	assert.GreaterOrEqual(t, tooFar.DistanceMeters, 200)

	out, err := fx.svc.Register(context.Background(), Request{
		TenantID: fx.tenantID, Phone: testPhone, Location: &geo.Point{Lat: -33.4489, Lng: -70.6693},
	})
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
}

func TestGiftCard(t *testing.T) {
	fx := newFixture(t, program.TypeGiftCard, "", 0)

	_, err := fx.register("10")
	assert.ErrorIs(t, err, ErrNoActiveMembership)

	fx.addMembership(func(m *membership.Membership) { m.Balance = decimal.NewFromInt(50) })

	_, err = fx.register("80")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, fx.ledger.onlyMembership().Balance.Equal(decimal.NewFromInt(50)), "balance must be unchanged")

	out, err := fx.register("20")
	require.NoError(t, err)
	assert.True(t, out.Response.Saldo.Equal(decimal.NewFromInt(30)))
	assert.True(t, out.Response.Consumido.Equal(decimal.NewFromInt(20)))

	// a second purchase the same day is still debited
	out, err = fx.register("30")
	require.NoError(t, err)
	assert.True(t, out.Response.Saldo.IsZero())
	assert.Equal(t, membership.StateUsed, fx.ledger.onlyMembership().State)

	_, err = fx.register("1")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestGiftCardRoundsAmountToCents(t *testing.T) {
	fx := newFixture(t, program.TypeGiftCard, "", 0)
	fx.addMembership(func(m *membership.Membership) { m.Balance = decimal.NewFromInt(10) })

	_, err := fx.register("0.004")
	assert.ErrorIs(t, err, ErrAmountRequired)

	out, err := fx.register("9.996")
	require.NoError(t, err)
	assert.Equal(t, "10.00", out.Response.Consumido.StringFixed(2))
	assert.True(t, out.Response.Saldo.IsZero())

	m := fx.ledger.onlyMembership()
	assert.True(t, m.Balance.IsZero())
	assert.Equal(t, membership.StateUsed, m.State, "an emptied card must be used")
}

func TestTieredDiscountLevelUp(t *testing.T) {
	fx := newFixture(t, program.TypeTieredDiscount, "", 0)

	for n := 1; n <= 11; n++ {
		out, err := fx.register("")
		require.NoError(t, err)
		leveled := n == 5 || n == 10
		assert.Equal(t, leveled, *out.Response.SubioDeNivel, "visit %d", n)
		assert.Equal(t, n, *out.Response.VisitasTotales)
		fx.nextDay()
	}

	assert.Equal(t, 11, fx.ledger.customerRow(fx.customerID).LifetimePoints)
}

func TestMembershipVIP(t *testing.T) {
	fx := newFixture(t, program.TypeMembership, "", 0)

	_, err := fx.register("")
	assert.ErrorIs(t, err, ErrNoActiveMembership)

	fx.addMembership(func(m *membership.Membership) {
		m.EndsAt = sql.NullTime{Time: fx.now.Add(-time.Minute), Valid: true}
	})
	_, err = fx.register("")
	assert.ErrorIs(t, err, ErrMembershipExpired)
	assert.Equal(t, membership.StateExpired, fx.ledger.onlyMembership().State)
	assert.Equal(t, 0, fx.ledger.stampCount(fx.customerID))
}

func TestCouponSingleUse(t *testing.T) {
	fx := newFixture(t, program.TypeCoupon, `{"descripcion": "2x1 en cafés"}`, 0)

	out, err := fx.register("")
	require.NoError(t, err)
	require.NotNil(t, out.Response.Cupon)
	assert.Contains(t, out.Response.Cupon.QRCode, "CUPON-")
	assert.Equal(t, "2x1 en cafés", out.Response.Cupon.Description)

	fx.nextDay()
	_, err = fx.register("")
	assert.ErrorIs(t, err, ErrCouponAlreadyUsed)
	assert.Len(t, fx.ledger.rewards, 1)
}

func TestAdmissionErrors(t *testing.T) {
	t.Run("customer not found", func(t *testing.T) {
		fx := newFixture(t, program.TypeAffiliation, "", 0)
		_, err := fx.svc.Register(context.Background(), Request{TenantID: fx.tenantID, Phone: "+56900000000"})
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})
	t.Run("no active program", func(t *testing.T) {
		fx := newFixture(t, program.TypeAffiliation, "", 0)
		fx.ledger.programs[fx.tenantID].IsActive = false
		_, err := fx.register("")
		assert.ErrorIs(t, err, ErrNoActiveProgram)
	})
	t.Run("tenant paused", func(t *testing.T) {
		fx := newFixture(t, program.TypeAffiliation, "", 0)
		fx.ledger.tenants[fx.tenantID].Status = tenant.StatusPaused
		_, err := fx.register("")
		assert.ErrorIs(t, err, ErrTenantInactive)
	})
	t.Run("unsupported type", func(t *testing.T) {
		fx := newFixture(t, program.Type("puntos"), "", 0)
		_, err := fx.register("")
		assert.ErrorIs(t, err, ErrUnsupportedProgramType)
	})
	t.Run("rate limited", func(t *testing.T) {
		fx := newFixture(t, program.TypeAffiliation, "", 0)
		fx.svc.limiter = denyLimiter{}
		_, err := fx.register("")
		assert.ErrorIs(t, err, ErrRateLimited)
	})
	t.Run("empty phone", func(t *testing.T) {
		fx := newFixture(t, program.TypeAffiliation, "", 0)
		_, err := fx.svc.Register(context.Background(), Request{TenantID: fx.tenantID, Phone: " - "})
		assert.ErrorIs(t, err, ErrPhoneRequired)
	})
}

func TestFailedCounterUpdateLeavesPendingRow(t *testing.T) {
	fx := newFixture(t, program.TypeAffiliation, "", 0)
	fx.ledger.applyErr = errors.New("connection reset")

	_, err := fx.register("")
	require.Error(t, err)
	for _, m := range errorMappings {
		assert.NotErrorIs(t, err, m.err, "store failure must surface as internal")
	}

	pending, err := fx.ledger.ListUnapplied(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 0, fx.ledger.customerRow(fx.customerID).LifetimePoints)
	assert.Equal(t, 0, fx.notifier.count())

	// retry the same day sees the row and does not double count
	fx.ledger.applyErr = nil
	out, err := fx.register("")
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	sweeper := NewSweeper(fx.ledger, fx.ledger, time.Minute)
	sweeper.now = func() time.Time { return time.Now().Add(time.Hour) }
	res, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Replayed: 1}, res)
	assert.Equal(t, 1, fx.ledger.customerRow(fx.customerID).LifetimePoints)
}
