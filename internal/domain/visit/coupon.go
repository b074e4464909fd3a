package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/fidely/fidely-api/internal/domain/membership"
	"github.com/fidely/fidely-api/internal/domain/reward"
)

// couponHandler issues a single coupon per membership
type couponHandler struct {
	*ledger
}

func (h *couponHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	m, err := h.loadOrCreate(ctx, v, nil)
	if err != nil {
		return nil, err
	}
	if m.State == membership.StateUsed {
		return nil, ErrCouponAlreadyUsed
	}
	if err := h.checkExpiry(ctx, v, m); err != nil {
		return nil, err
	}

	stampID, duplicate, err := h.recordVisit(ctx, v)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &Outcome{Duplicate: true, Response: duplicateResponse()}, nil
	}

	description := v.Config.CouponDescription
	if description == "" {
		description = v.Program.RewardDescription
	}
	target := reward.Target{CustomerID: v.Customer.ID, TenantID: v.Tenant.ID, ProgramID: v.Program.ID}
	rw, err := h.rewards.IssueCoupon(ctx, m.ID, target, description)
	if err != nil {
		if errors.Is(err, reward.ErrMembershipUsed) {
			return nil, ErrCouponAlreadyUsed
		}
		return nil, fmt.Errorf("issue coupon: %w", err)
	}

	resp := VisitResponse{
		Message: "¡Tu cupón está listo!",
		Cupon: &CouponInfo{
			QRCode:      rw.Code,
			Description: description,
			ExpiresAt:   m.ExpiresAt(),
		},
	}
	h.applyAfterTransfer(ctx, v, stampID, &resp)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
