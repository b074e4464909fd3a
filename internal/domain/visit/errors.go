package visit

import "errors"

var (
	ErrPhoneRequired          = errors.New("customer phone is required")
	ErrAmountRequired         = errors.New("purchase amount is required")
	ErrLocationRequired       = errors.New("client location is required")
	ErrLocationInvalid        = errors.New("client location is invalid")
	ErrTooFar                 = errors.New("client is too far from the store")
	ErrTenantInactive         = errors.New("tenant is not active")
	ErrTenantMismatch         = errors.New("tenant does not match staff token")
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrNoActiveProgram        = errors.New("no active program")
	ErrNoActiveMembership     = errors.New("no active membership")
	ErrMembershipExpired      = errors.New("membership expired")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrPassExhausted          = errors.New("pass has no uses left")
	ErrCouponAlreadyUsed      = errors.New("coupon already used")
	ErrUnsupportedProgramType = errors.New("unsupported program type")
	ErrRateLimited            = errors.New("too many visits for this customer")
)
