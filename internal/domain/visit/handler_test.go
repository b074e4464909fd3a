package visit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidely/fidely-api/internal/middleware"
	"github.com/fidely/fidely-api/internal/pkg/geo"
	"github.com/fidely/fidely-api/internal/pkg/jwt"
)

type stubRegistrar struct {
	got Request
	out *Outcome
	err error
}

func (s *stubRegistrar) Register(ctx context.Context, req Request) (*Outcome, error) {
	s.got = req
	return s.out, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func newTestRouter(reg Registrar, jwtService *jwt.Service) http.Handler {
	h := NewHandler(reg)
	r := chi.NewRouter()
	r.Mount("/visits", h.Routes())
	r.Mount("/staff/visits", h.StaffRoutes(middleware.StaffAuth(jwtService)))
	return r
}

func doJSON(t *testing.T, router http.Handler, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandlerRegisterCreated(t *testing.T) {
	tenantID := uuid.New()
	reg := &stubRegistrar{out: &Outcome{StampID: uuid.New(), Response: VisitResponse{Message: "Visita registrada"}}}
	router := newTestRouter(reg, jwt.NewService("secret", time.Minute))

	rec, env := doJSON(t, router, "/visits", "", map[string]any{
		"tenant_id":       tenantID.String(),
		"customer_phone":  "+56 9 1234-5678",
		"purchase_amount": "12500.50",
		"client_lat":      -33.4489,
		"client_lng":      -70.6693,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, tenantID, reg.got.TenantID)
	assert.Equal(t, "+56912345678", reg.got.Phone)
	require.NotNil(t, reg.got.Amount)
	assert.True(t, reg.got.Amount.Equal(decimal.RequireFromString("12500.50")))
	require.NotNil(t, reg.got.Location)
	assert.Equal(t, -33.4489, reg.got.Location.Lat)
}

func TestHandlerRegisterValidation(t *testing.T) {
	router := newTestRouter(&stubRegistrar{}, jwt.NewService("secret", time.Minute))

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing tenant", map[string]any{"customer_phone": "+56912345678"}, "tenant_id"},
		{"bad tenant", map[string]any{"tenant_id": "nope", "customer_phone": "+56912345678"}, "tenant_id"},
		{"bad phone", map[string]any{"tenant_id": uuid.NewString(), "customer_phone": "12ab"}, "customer_phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doJSON(t, router, "/visits", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			assert.Contains(t, env.Error.Details, tt.field)
		})
	}
}

func TestHandlerDuplicateReturnsConflictWithData(t *testing.T) {
	reg := &stubRegistrar{out: &Outcome{Duplicate: true, Response: VisitResponse{
		Message:        "Ya registraste tu visita de hoy",
		VisitasTotales: intPtr(3),
	}}}
	router := newTestRouter(reg, jwt.NewService("secret", time.Minute))

	rec, env := doJSON(t, router, "/visits", "", map[string]any{
		"tenant_id":      uuid.NewString(),
		"customer_phone": "+56912345678",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_VISITED_TODAY", env.Error.Code)

	var data VisitResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.VisitasTotales)
	assert.Equal(t, 3, *data.VisitasTotales)
}

func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrCustomerNotFound, http.StatusNotFound, "CUSTOMER_NOT_FOUND"},
		{ErrNoActiveProgram, http.StatusNotFound, "NO_ACTIVE_PROGRAM"},
		{ErrTenantInactive, http.StatusForbidden, "TENANT_INACTIVE"},
		{ErrInsufficientBalance, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
		{ErrPassExhausted, http.StatusBadRequest, "PASS_EXHAUSTED"},
		{ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			router := newTestRouter(&stubRegistrar{err: tt.err}, jwt.NewService("secret", time.Minute))
			rec, env := doJSON(t, router, "/visits", "", map[string]any{
				"tenant_id":      uuid.NewString(),
				"customer_phone": "+56912345678",
			})
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestHandlerTooFarDetails(t *testing.T) {
	tooFar := &geo.TooFarError{DistanceMeters: 512, RadiusMeters: 200}
	reg := &stubRegistrar{err: fmt.Errorf("%w: %w", ErrTooFar, tooFar)}
	router := newTestRouter(reg, jwt.NewService("secret", time.Minute))

	rec, env := doJSON(t, router, "/visits", "", map[string]any{
		"tenant_id":      uuid.NewString(),
		"customer_phone": "+56912345678",
		"client_lat":     -33.4444,
		"client_lng":     -70.6693,
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOO_FAR", env.Error.Code)
	assert.Equal(t, "512", env.Error.Details["distance_meters"])
	assert.Equal(t, "200", env.Error.Details["radius_meters"])
}

func TestHandlerStaffUsesTokenTenant(t *testing.T) {
	jwtService := jwt.NewService("secret", time.Minute)
	tenantID := uuid.New()
	token, err := jwtService.GenerateStaffToken(uuid.New(), tenantID, "cashier")
	require.NoError(t, err)

	reg := &stubRegistrar{out: &Outcome{StampID: uuid.New()}}
	router := newTestRouter(reg, jwtService)

	rec, _ := doJSON(t, router, "/staff/visits", token, map[string]any{"customer_phone": "+56912345678"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, tenantID, reg.got.TenantID)

	rec, env := doJSON(t, router, "/staff/visits", token, map[string]any{
		"tenant_id":      uuid.NewString(),
		"customer_phone": "+56912345678",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TENANT_MISMATCH", env.Error.Code)

	rec, _ = doJSON(t, router, "/staff/visits", "", map[string]any{"customer_phone": "+56912345678"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
