package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type DeliveryZone string

const (
	ZoneInCity      DeliveryZone = "in_city"
	ZoneOutsideCity DeliveryZone = "outside_city"
)

func (z DeliveryZone) Valid() bool {
	return z == ZoneInCity || z == ZoneOutsideCity
}

// DeliveryRates holds the flat per-zone fees.
type DeliveryRates struct {
	InCity      decimal.Decimal
	OutsideCity decimal.Decimal
}

// Fee returns the delivery cost for a checkout: zero once the free-delivery
// threshold was crossed (the storefront decides and sends the flag), the
// zone's flat fee otherwise.
func (r DeliveryRates) Fee(zone DeliveryZone, freeDelivery bool) decimal.Decimal {
	if freeDelivery {
		return decimal.Zero
	}
	if zone == ZoneOutsideCity {
		return r.OutsideCity
	}
	return r.InCity
}

// EffectivePrice picks the discounted price only when it actually undercuts
// the standard one.
func EffectivePrice(standard decimal.Decimal, discounted *decimal.Decimal) decimal.Decimal {
	if discounted != nil && discounted.LessThan(standard) {
		return *discounted
	}
	return standard
}

// CouponInfo renders the human-readable coupon snapshot stored on order rows
// and carried on the placed event, e.g. "SPRING10 (-10%)". No coupon means
// nil.
func CouponInfo(code string, percent decimal.Decimal) *string {
	if code == "" {
		return nil
	}
	s := fmt.Sprintf("%s (-%s%%)", code, percent.String())
	return &s
}

var hundred = decimal.NewFromInt(100)

// ApplyCoupon applies a percentage discount multiplicatively and rounds to
// two decimals. percent outside (0,100] leaves the price untouched.
func ApplyCoupon(price decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	if percent.IsPositive() && percent.LessThanOrEqual(hundred) {
		price = price.Mul(hundred.Sub(percent)).Div(hundred)
	}
	return price.Round(2)
}
