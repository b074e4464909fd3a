package visit

import "context"

// affiliationHandler only counts visits
type affiliationHandler struct {
	*ledger
}

func (h *affiliationHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	stampID, duplicate, err := h.recordVisit(ctx, v)
	if err != nil {
		return nil, err
	}
	if duplicate {
		resp := duplicateResponse()
		resp.VisitasTotales = intPtr(v.Customer.LifetimePoints)
		return &Outcome{Duplicate: true, Response: resp}, nil
	}

	u, err := h.applyVisit(ctx, v, stampID, 1)
	if err != nil {
		return nil, err
	}

	resp := VisitResponse{
		Message:        "Visita registrada",
		VisitasTotales: intPtr(v.Customer.LifetimePoints + 1),
	}
	withGamification(&resp, u)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
