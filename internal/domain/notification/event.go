package notification

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fidely/fidely-api/internal/domain/program"
)

// Event describes an accepted visit for the customer-facing notification
type Event struct {
	// StampID is zero when the visit reused an existing same-day row
	StampID     uuid.UUID
	CustomerID  uuid.UUID
	TenantID    uuid.UUID
	TenantName  string
	TenantSlug  string
	ProgramType program.Type

	Points        int
	Goal          int
	RewardCode    string
	Earned        decimal.Decimal
	Balance       decimal.Decimal
	Consumed      decimal.Decimal
	RemainingUses int
	PackCompleted bool
	Discount      decimal.Decimal
	LeveledUp     bool
}

// Compose builds the push title and body for an event
func Compose(ev Event) (title, body string) {
	title = ev.TenantName
	if title == "" {
		title = "Tu programa de fidelidad"
	}

	switch ev.ProgramType {
	case program.TypeStampCard:
		if ev.RewardCode != "" {
			return title, fmt.Sprintf("¡Completaste tu tarjeta! Tu código de premio es %s", ev.RewardCode)
		}
		return title, fmt.Sprintf("Sumaste un sello: llevas %d de %d", ev.Points, ev.Goal)
	case program.TypeCashback:
		return title, fmt.Sprintf("Ganaste $%s de cashback. Saldo: $%s", ev.Earned.StringFixed(2), ev.Balance.StringFixed(2))
	case program.TypeMultipass:
		if ev.PackCompleted {
			return title, "Usaste la última visita de tu pase"
		}
		return title, fmt.Sprintf("Visita registrada. Te quedan %d usos", ev.RemainingUses)
	case program.TypeTieredDiscount:
		if ev.LeveledUp {
			return title, fmt.Sprintf("¡Subiste de nivel! Ahora tienes %s%% de descuento", ev.Discount.String())
		}
		return title, fmt.Sprintf("Visita registrada. Tu descuento actual es %s%%", ev.Discount.String())
	case program.TypeMembership:
		return title, "Bienvenido de nuevo, miembro VIP"
	case program.TypeCoupon:
		return title, fmt.Sprintf("Tu cupón está listo: %s", ev.RewardCode)
	case program.TypeGiftCard:
		return title, fmt.Sprintf("Usaste $%s de tu gift card. Saldo: $%s", ev.Consumed.StringFixed(2), ev.Balance.StringFixed(2))
	default:
		return title, "Gracias por tu visita"
	}
}
