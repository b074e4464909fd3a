package visit

import (
	"context"

	"github.com/fidely/fidely-api/internal/domain/membership"
)

// membershipHandler admits visits from customers holding a valid VIP
// membership. It only counts the visit.
type membershipHandler struct {
	*ledger
}

func (h *membershipHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	m, err := h.load(ctx, v)
	if err != nil {
		return nil, err
	}
	if err := h.checkExpiry(ctx, v, m); err != nil {
		return nil, err
	}
	if m.State != membership.StateActive {
		return nil, ErrNoActiveMembership
	}

	stampID, duplicate, err := h.recordVisit(ctx, v)
	if err != nil {
		return nil, err
	}
	if duplicate {
		resp := duplicateResponse()
		resp.MembresiaVence = m.ExpiresAt()
		return &Outcome{Duplicate: true, Response: resp}, nil
	}

	u, err := h.applyVisit(ctx, v, stampID, 1)
	if err != nil {
		return nil, err
	}

	resp := VisitResponse{
		Message:        "Bienvenido, miembro VIP",
		VisitasTotales: intPtr(v.Customer.LifetimePoints + 1),
		MembresiaVence: m.ExpiresAt(),
	}
	withGamification(&resp, u)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
