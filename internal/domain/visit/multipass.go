package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fidely/fidely-api/internal/domain/membership"
)

// multipassHandler consumes one use of a prepaid pack per visit. The pack
// is created with the configured uses on first visit and becomes used when
// the last one is consumed.
type multipassHandler struct {
	*ledger
}

func (h *multipassHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	m, err := h.loadOrCreate(ctx, v, func(m *membership.Membership) {
		m.RemainingUses = sql.NullInt64{Int64: int64(v.Config.TotalUses), Valid: true}
	})
	if err != nil {
		return nil, err
	}
	if err := h.checkExpiry(ctx, v, m); err != nil {
		return nil, err
	}
	if m.State == membership.StateUsed || m.Uses() <= 0 {
		return nil, ErrPassExhausted
	}

	stampID, err := h.recordPurchase(ctx, v)
	if err != nil {
		return nil, err
	}

	updated, err := h.memberships.ConsumeUse(ctx, m.ID)
	if err != nil {
		if errors.Is(err, membership.ErrPassExhausted) {
			return nil, ErrPassExhausted
		}
		return nil, fmt.Errorf("consume pass use: %w", err)
	}

	completed := updated.State == membership.StateUsed
	resp := VisitResponse{
		UsosRestantes:  intPtr(updated.Uses()),
		PackCompletado: boolPtr(completed),
		MembresiaVence: updated.ExpiresAt(),
	}
	if completed {
		resp.Message = "Usaste la última visita de tu pase"
	} else {
		resp.Message = fmt.Sprintf("Visita registrada, te quedan %d usos", updated.Uses())
	}
	h.applyAfterTransfer(ctx, v, stampID, &resp)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
