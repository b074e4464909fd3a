package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fidely/fidely-api/internal/domain/customer"
	"github.com/fidely/fidely-api/internal/domain/gamification"
	"github.com/fidely/fidely-api/internal/domain/reward"
	"github.com/fidely/fidely-api/internal/domain/stamp"
)

const maxRewardCodeAttempts = 5

// stampCardHandler adds one stamp per day and issues a reward every goal
// stamps. The whole transition runs inside the store function.
type stampCardHandler struct {
	*ledger
}

func (h *stampCardHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	var (
		res *stamp.CardResult
		err error
	)
	for attempt := 0; attempt < maxRewardCodeAttempts; attempt++ {
		var code string
		code, err = reward.GenerateCode(reward.PrefixStampCard)
		if err != nil {
			return nil, fmt.Errorf("generate reward code: %w", err)
		}
		res, err = h.stamps.RecordStampCard(ctx, v.Tenant.ID, v.Customer.Phone, code, v.Day)
		if !errors.Is(err, stamp.ErrRewardCodeTaken) {
			break
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, stamp.ErrCustomerNotFound):
		return nil, ErrCustomerNotFound
	case errors.Is(err, stamp.ErrNoStampProgram):
		return nil, ErrNoActiveProgram
	default:
		return nil, fmt.Errorf("record stamp: %w", err)
	}

	resp := VisitResponse{
		PointsActuales: intPtr(res.Points),
		PointsMeta:     intPtr(res.Goal),
	}
	if res.Duplicate() {
		dup := duplicateResponse()
		dup.PointsActuales, dup.PointsMeta = resp.PointsActuales, resp.PointsMeta
		return &Outcome{Duplicate: true, Response: dup}, nil
	}

	u := customer.NewVisitUpdate(v.Customer, 1, v.Now)
	u.Tier = gamification.TierFor(res.Lifetime)
	if err := h.customers.UpdateGamification(ctx, v.Customer.ID, u); err != nil {
		log.Error().Err(err).Str("customer_id", v.Customer.ID.String()).Msg("Failed to update gamification")
	} else {
		withGamification(&resp, u)
	}

	if res.RewardCode.Valid {
		resp.Message = "¡Completaste tu tarjeta! Canjea tu premio"
		resp.RewardCode = strPtr(res.RewardCode.String)
	} else {
		resp.Message = fmt.Sprintf("Sello registrado: %d de %d", res.Points, res.Goal)
	}

	return &Outcome{StampID: res.StampID.UUID, Response: resp}, nil
}
