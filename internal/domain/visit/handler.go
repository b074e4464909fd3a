package visit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/middleware"
	"github.com/fidely/fidely-api/internal/pkg/errorhandler"
	"github.com/fidely/fidely-api/internal/pkg/geo"
	"github.com/fidely/fidely-api/internal/pkg/logger"
	"github.com/fidely/fidely-api/internal/pkg/response"
	"github.com/fidely/fidely-api/internal/pkg/validator"
)

// Registrar processes visits
type Registrar interface {
	Register(ctx context.Context, req Request) (*Outcome, error)
}

// Handler handles visit HTTP requests
type Handler struct {
	service Registrar
}

// NewHandler creates visit handler
func NewHandler(service Registrar) *Handler {
	return &Handler{service: service}
}

// Register handles POST /visits, the customer self check-in
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.TenantID == "" {
		response.ValidationError(w, map[string]string{"tenant_id": "This field is required"})
		return
	}

	h.register(w, r, uuid.MustParse(req.TenantID), req)
}

// RegisterStaff handles POST /staff/visits. The tenant comes from the staff
// token; a tenant_id in the body must match it.
func (h *Handler) RegisterStaff(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == uuid.Nil {
		response.Unauthorized(w, "Missing tenant in token")
		return
	}
	if req.TenantID != "" && uuid.MustParse(req.TenantID) != tenantID {
		logger.FromContext(r.Context()).Warn().
			Str("staff_id", middleware.GetStaffID(r.Context()).String()).
			Str("role", middleware.GetRole(r.Context())).
			Str("token_tenant_id", tenantID.String()).
			Str("body_tenant_id", req.TenantID).
			Msg("Staff visit for foreign tenant")
		writeError(w, r, ErrTenantMismatch)
		return
	}

	h.register(w, r, tenantID, req)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (*RegisterVisitRequest, bool) {
	var req RegisterVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return nil, false
	}
	req.CustomerPhone = customer.NormalizePhone(req.CustomerPhone)

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return nil, false
	}
	return &req, true
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, tenantID uuid.UUID, req *RegisterVisitRequest) {
	out, err := h.service.Register(r.Context(), Request{
		TenantID: tenantID,
		Phone:    req.CustomerPhone,
		Amount:   req.PurchaseAmount,
		Location: req.Location(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if out.Duplicate {
		response.ConflictWithData(w, "ALREADY_VISITED_TODAY", out.Response.Message, out.Response)
		return
	}
	response.Created(w, out.Response)
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ErrPhoneRequired, http.StatusBadRequest, "VALIDATION_ERROR", "Customer phone is required"},
	{ErrAmountRequired, http.StatusBadRequest, "AMOUNT_REQUIRED", "A purchase amount greater than zero is required"},
	{ErrLocationRequired, http.StatusBadRequest, "LOCATION_REQUIRED", "Location is required to register a visit at this store"},
	{ErrLocationInvalid, http.StatusBadRequest, "LOCATION_INVALID", "Location coordinates are invalid"},
	{ErrInsufficientBalance, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "Insufficient balance"},
	{ErrPassExhausted, http.StatusBadRequest, "PASS_EXHAUSTED", "The pass has no uses left"},
	{ErrCouponAlreadyUsed, http.StatusBadRequest, "COUPON_ALREADY_USED", "The coupon was already used"},
	{ErrUnsupportedProgramType, http.StatusBadRequest, "UNSUPPORTED_PROGRAM_TYPE", "Program type is not supported"},
	{ErrTooFar, http.StatusForbidden, "TOO_FAR", "You are too far from the store"},
	{ErrTenantInactive, http.StatusForbidden, "TENANT_INACTIVE", "This store is not accepting visits"},
	{ErrMembershipExpired, http.StatusForbidden, "MEMBERSHIP_EXPIRED", "Membership has expired"},
	{ErrTenantMismatch, http.StatusForbidden, "TENANT_MISMATCH", "Tenant does not match your account"},
	{ErrCustomerNotFound, http.StatusNotFound, "CUSTOMER_NOT_FOUND", "Customer not found"},
	{ErrNoActiveProgram, http.StatusNotFound, "NO_ACTIVE_PROGRAM", "Store has no active loyalty program"},
	{ErrNoActiveMembership, http.StatusNotFound, "NO_ACTIVE_MEMBERSHIP", "Customer has no active membership"},
	{ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later"},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}

		var details map[string]string
		var tooFar *geo.TooFarError
		if errors.As(err, &tooFar) {
			details = map[string]string{
				"distance_meters": strconv.Itoa(tooFar.DistanceMeters),
				"radius_meters":   strconv.Itoa(int(tooFar.RadiusMeters)),
			}
		}
		errorhandler.HandleErrorWithDetails(r.Context(), w, m.status, m.code, m.message, details, err)
		return
	}

	errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
}
