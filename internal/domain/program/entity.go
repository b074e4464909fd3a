package program

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Type is the loyalty mechanic a program runs
type Type string

const (
	TypeStampCard      Type = "sellos"
	TypeCashback       Type = "cashback"
	TypeMultipass      Type = "multipase"
	TypeTieredDiscount Type = "descuento"
	TypeMembership     Type = "membresia"
	TypeAffiliation    Type = "afiliacion"
	TypeCoupon         Type = "cupon"
	TypeGiftCard       Type = "giftcard"
)

// Types lists every supported program type
var Types = []Type{
	TypeStampCard,
	TypeCashback,
	TypeMultipass,
	TypeTieredDiscount,
	TypeMembership,
	TypeAffiliation,
	TypeCoupon,
	TypeGiftCard,
}

// IsValid checks if the type is one of the supported program types
func (t Type) IsValid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// OncePerDay reports whether a second visit on the same calendar day is
// rejected. Value types (cashback, multipass, gift-card) process every
// request because each one is a separate purchase.
func (t Type) OncePerDay() bool {
	switch t {
	case TypeCashback, TypeMultipass, TypeGiftCard:
		return false
	}
	return true
}

// Program is a tenant's loyalty configuration
type Program struct {
	ID                uuid.UUID      `db:"id"`
	TenantID          uuid.UUID      `db:"tenant_id"`
	Type              Type           `db:"type"`
	Goal              int            `db:"goal"`
	RewardDescription string         `db:"reward_description"`
	Config            types.JSONText `db:"config"`
	IsActive          bool           `db:"is_active"`
	CreatedAt         time.Time      `db:"created_at"`
}
