package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fidely/fidely-api/internal/domain/membership"
)

var hundred = decimal.NewFromInt(100)

// cashbackHandler credits a percentage of each purchase to the customer's
// balance, up to the monthly cap. Every purchase counts, including several
// on the same day.
type cashbackHandler struct {
	*ledger
}

// cashbackFor returns amount*pct/100 rounded to cents
func cashbackFor(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

func (h *cashbackHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	amount := v.Request.Amount
	if amount == nil || !amount.IsPositive() {
		return nil, ErrAmountRequired
	}

	m, err := h.loadOrCreate(ctx, v, func(m *membership.Membership) {
		m.EndsAt.Valid = false
	})
	if err != nil {
		return nil, err
	}
	if m.State != membership.StateActive {
		return nil, ErrNoActiveMembership
	}

	stampID, err := h.recordPurchase(ctx, v)
	if err != nil {
		return nil, err
	}

	credited, balance, err := h.memberships.Credit(ctx, m.ID, cashbackFor(*amount, v.Config.CashbackPercent), v.Config.MonthlyCap)
	if err != nil {
		if errors.Is(err, membership.ErrMembershipNotActive) {
			return nil, ErrNoActiveMembership
		}
		return nil, fmt.Errorf("credit cashback: %w", err)
	}

	resp := VisitResponse{
		Message:        fmt.Sprintf("Ganaste $%s de cashback", credited.StringFixed(2)),
		CashbackGanado: decPtr(credited),
		SaldoTotal:     decPtr(balance),
	}
	h.applyAfterTransfer(ctx, v, stampID, &resp)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
