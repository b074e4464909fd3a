package visit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fidely/fidely-api/internal/domain/program"
	"github.com/fidely/fidely-api/internal/pkg/geo"
)

// RegisterVisitRequest is the check-in payload
type RegisterVisitRequest struct {
	TenantID       string           `json:"tenant_id" validate:"omitempty,uuid"`
	CustomerPhone  string           `json:"customer_phone" validate:"required,phone"`
	PurchaseAmount *decimal.Decimal `json:"purchase_amount,omitempty"`
	ClientLat      *float64         `json:"client_lat,omitempty"`
	ClientLng      *float64         `json:"client_lng,omitempty"`
}

// Location returns the reported coordinates. A half-filled pair yields an
// invalid point so it is rejected the same way as out-of-range values.
func (r *RegisterVisitRequest) Location() *geo.Point {
	switch {
	case r.ClientLat == nil && r.ClientLng == nil:
		return nil
	case r.ClientLat == nil || r.ClientLng == nil:
		return &geo.Point{Lat: 1000, Lng: 1000}
	default:
		return &geo.Point{Lat: *r.ClientLat, Lng: *r.ClientLng}
	}
}

// Request is a validated visit submission
type Request struct {
	TenantID uuid.UUID
	Phone    string
	Amount   *decimal.Decimal
	Location *geo.Point
}

// CouponInfo describes an issued coupon
type CouponInfo struct {
	QRCode      string     `json:"qr_code"`
	Description string     `json:"descripcion,omitempty"`
	ExpiresAt   *time.Time `json:"vence,omitempty"`
}

// VisitResponse is the outcome of a visit. Only the fields relevant to the
// program type are set.
type VisitResponse struct {
	Message     string       `json:"message"`
	ProgramType program.Type `json:"program_type"`
	CustomerID  string       `json:"customer_id"`

	// sellos
	PointsActuales *int    `json:"points_actuales,omitempty"`
	PointsMeta     *int    `json:"points_meta,omitempty"`
	RewardCode     *string `json:"codigo_premio,omitempty"`

	// cashback
	CashbackGanado *decimal.Decimal `json:"cashback_ganado,omitempty"`
	SaldoTotal     *decimal.Decimal `json:"saldo_total,omitempty"`

	// multipase
	UsosRestantes  *int  `json:"usos_restantes,omitempty"`
	PackCompletado *bool `json:"pack_completado,omitempty"`

	// descuento
	DescuentoActual *decimal.Decimal `json:"descuento_actual,omitempty"`
	SubioDeNivel    *bool            `json:"subio_de_nivel,omitempty"`
	ProximoNivel    *int             `json:"proximo_nivel,omitempty"`

	// descuento, membresia, afiliacion
	VisitasTotales *int       `json:"visitas_totales,omitempty"`
	MembresiaVence *time.Time `json:"membresia_vence,omitempty"`

	// cupon
	Cupon *CouponInfo `json:"cupon,omitempty"`

	// giftcard
	Saldo     *decimal.Decimal `json:"saldo,omitempty"`
	Consumido *decimal.Decimal `json:"consumido,omitempty"`

	// gamification
	Nivel string `json:"nivel,omitempty"`
	Racha int    `json:"racha,omitempty"`
}

// Outcome is what a program handler decided for one visit
type Outcome struct {
	// Duplicate is set when a once-per-day program already had a visit today
	Duplicate bool
	// StampID is the visit row written by this request, zero when the
	// same-day row already existed
	StampID  uuid.UUID
	Response VisitResponse
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string { return &v }
func decPtr(v decimal.Decimal) *decimal.Decimal { return &v }
