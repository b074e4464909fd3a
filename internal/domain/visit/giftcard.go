package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/fidely/fidely-api/internal/domain/membership"
)

// giftCardHandler debits purchases from a prepaid balance. A card is
// created on first use only when the program grants an initial amount.
type giftCardHandler struct {
	*ledger
}

func (h *giftCardHandler) Apply(ctx context.Context, v *Visit) (*Outcome, error) {
	amount := v.Request.Amount
	if amount == nil || !amount.IsPositive() {
		return nil, ErrAmountRequired
	}

	var (
		m   *membership.Membership
		err error
	)
	if v.Config.InitialAmount.IsPositive() {
		m, err = h.loadOrCreate(ctx, v, func(m *membership.Membership) {
			m.Balance = v.Config.InitialAmount
		})
	} else {
		m, err = h.load(ctx, v)
	}
	if err != nil {
		return nil, err
	}

	if err := h.checkExpiry(ctx, v, m); err != nil {
		return nil, err
	}
	if m.State == membership.StateUsed || !m.Balance.IsPositive() || amount.GreaterThan(m.Balance) {
		return nil, ErrInsufficientBalance
	}

	stampID, err := h.recordPurchase(ctx, v)
	if err != nil {
		return nil, err
	}

	updated, err := h.memberships.Debit(ctx, m.ID, *amount)
	if err != nil {
		if errors.Is(err, membership.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("debit gift card: %w", err)
	}

	resp := VisitResponse{
		Saldo:     decPtr(updated.Balance),
		Consumido: decPtr(*amount),
	}
	if updated.State == membership.StateUsed {
		resp.Message = "Usaste todo el saldo de tu gift card"
	} else {
		resp.Message = fmt.Sprintf("Pagaste $%s con tu gift card", amount.StringFixed(2))
	}
	h.applyAfterTransfer(ctx, v, stampID, &resp)

	return &Outcome{StampID: stampID, Response: resp}, nil
}
