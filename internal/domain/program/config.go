package program

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	DefaultCashbackPercent = 5
	DefaultMultipassUses   = 10
	DefaultValidityDays    = 30
)

// DiscountTier grants Percent once a customer reaches Visits lifetime visits
type DiscountTier struct {
	Visits  int             `json:"visitas"`
	Percent decimal.Decimal `json:"descuento"`
}

// DefaultDiscountTiers is used when a tiered-discount program has no table
func DefaultDiscountTiers() []DiscountTier {
	return []DiscountTier{
		{Visits: 5, Percent: decimal.NewFromInt(5)},
		{Visits: 10, Percent: decimal.NewFromInt(10)},
		{Visits: 20, Percent: decimal.NewFromInt(15)},
	}
}

// Config is a program configuration with every field populated
type Config struct {
	// cashback
	CashbackPercent decimal.Decimal
	MonthlyCap      *decimal.Decimal // nil means unbounded

	// multipase
	TotalUses int

	// multipase, membresia, cupon
	ValidityDays int

	// descuento
	Tiers []DiscountTier

	// cupon
	CouponDescription string

	// giftcard
	InitialAmount decimal.Decimal
}

// rawConfig accepts the field names stored by the dashboard and the older
// English names still present on legacy programs.
type rawConfig struct {
	Porcentaje   *decimal.Decimal `json:"porcentaje"`
	Percentage   *decimal.Decimal `json:"percentage"`
	TopeMensual  *decimal.Decimal `json:"tope_mensual"`
	MonthlyCap   *decimal.Decimal `json:"monthly_cap"`
	UsosTotales  *int             `json:"usos_totales"`
	TotalUses    *int             `json:"total_uses"`
	VigenciaDias *int             `json:"vigencia_dias"`
	ValidityDays *int             `json:"validity_days"`
	Niveles      []DiscountTier   `json:"niveles"`
	Descripcion  *string          `json:"descripcion"`
	MontoInicial *decimal.Decimal `json:"monto_inicial"`
}

// ResolveConfig normalizes raw into a typed Config for the program type.
// It never fails: malformed JSON, missing fields and out-of-range values
// fall back to defaults.
func ResolveConfig(t Type, raw []byte) Config {
	var rc rawConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rc); err != nil {
			rc = rawConfig{}
		}
	}

	cfg := Config{
		CashbackPercent: decimal.NewFromInt(DefaultCashbackPercent),
		TotalUses:       DefaultMultipassUses,
		ValidityDays:    DefaultValidityDays,
		InitialAmount:   decimal.Zero,
	}

	switch t {
	case TypeCashback:
		if pct := firstDecimal(rc.Porcentaje, rc.Percentage); pct != nil && pct.IsPositive() && pct.LessThanOrEqual(decimal.NewFromInt(100)) {
			cfg.CashbackPercent = *pct
		}
		if limit := firstDecimal(rc.TopeMensual, rc.MonthlyCap); limit != nil && limit.IsPositive() {
			l := *limit
			cfg.MonthlyCap = &l
		}
	case TypeMultipass:
		if uses := firstInt(rc.UsosTotales, rc.TotalUses); uses != nil && *uses > 0 {
			cfg.TotalUses = *uses
		}
		cfg.ValidityDays = resolveValidity(rc)
	case TypeTieredDiscount:
		cfg.Tiers = normalizeTiers(rc.Niveles)
	case TypeMembership:
		cfg.ValidityDays = resolveValidity(rc)
	case TypeCoupon:
		cfg.ValidityDays = resolveValidity(rc)
		if rc.Descripcion != nil {
			cfg.CouponDescription = *rc.Descripcion
		}
	case TypeGiftCard:
		if rc.MontoInicial != nil && !rc.MontoInicial.IsNegative() {
			cfg.InitialAmount = *rc.MontoInicial
		}
	}

	return cfg
}

func resolveValidity(rc rawConfig) int {
	if days := firstInt(rc.VigenciaDias, rc.ValidityDays); days != nil && *days > 0 {
		return *days
	}
	return DefaultValidityDays
}

func normalizeTiers(tiers []DiscountTier) []DiscountTier {
	valid := make([]DiscountTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Visits > 0 && !tier.Percent.IsNegative() {
			valid = append(valid, tier)
		}
	}
	if len(valid) == 0 {
		return DefaultDiscountTiers()
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Visits < valid[j].Visits })
	return valid
}

func firstDecimal(values ...*decimal.Decimal) *decimal.Decimal {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// CurrentDiscount returns the highest tier reached by visits, or zero.
// leveledUp is true only when visits equals a tier threshold exactly.
func (c Config) CurrentDiscount(visits int) (percent decimal.Decimal, leveledUp bool) {
	percent = decimal.Zero
	for _, tier := range c.Tiers {
		if visits >= tier.Visits {
			percent = tier.Percent
		}
		if visits == tier.Visits {
			leveledUp = true
		}
	}
	return percent, leveledUp
}

// NextTier returns the first tier above visits, if any.
func (c Config) NextTier(visits int) *DiscountTier {
	for i := range c.Tiers {
		if c.Tiers[i].Visits > visits {
			return &c.Tiers[i]
		}
	}
	return nil
}
