package visit

import (
	"context"
	"fmt"
)

// tieredDiscountHandler counts visits and reports the discount tier the
// customer has reached.
type tieredDiscountHandler struct {
	*ledger
}

func (h *tieredDiscountHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	stampID, duplicate, err := h.recordVisit(ctx, v)
	if err != nil {
		return nil, err
	}
	if duplicate {
		pct, _ := v.Config.CurrentDiscount(v.Customer.LifetimePoints)
		resp := duplicateResponse()
		resp.DescuentoActual = decPtr(pct)
		resp.VisitasTotales = intPtr(v.Customer.LifetimePoints)
		return &Outcome{Duplicate: true, Response: resp}, nil
	}

	u, err := h.applyVisit(ctx, v, stampID, 1)
	if err != nil {
		return nil, err
	}

	total := v.Customer.LifetimePoints + 1
	pct, leveledUp := v.Config.CurrentDiscount(total)
	resp := VisitResponse{
		DescuentoActual: decPtr(pct),
		SubioDeNivel:    boolPtr(leveledUp),
		VisitasTotales:  intPtr(total),
	}
	if next := v.Config.NextTier(total); next != nil {
		resp.ProximoNivel = intPtr(next.Visits)
	}
	if leveledUp {
		resp.Message = fmt.Sprintf("¡Subiste de nivel! Ahora tienes %s%% de descuento", pct.String())
	} else {
		resp.Message = fmt.Sprintf("Visita registrada, tu descuento es %s%%", pct.String())
	}
	withGamification(&resp, u)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
