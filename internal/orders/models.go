package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one persisted line of a checkout: a checkout with N distinct
// products yields N rows, all sharing the cart-level total, delivery cost,
// coupon info and batch timestamp. Contact fields are snapshots, not live
// views of the customer profile.
type Order struct {
	ID              string
	Status          Status
	CustomerName    string
	Phone           string
	Email           string
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	DeliveryCost    decimal.Decimal
	Total           decimal.Decimal
	DeliveryAddress string
	CouponInfo      *string
	PaymentMethod   string
	Locale          string
	CreatedAt       time.Time
}

type Product struct {
	ID              string
	Name            string
	Stock           int
	StandardPrice   decimal.Decimal
	DiscountedPrice *decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SyncView is the slice of an order the CRM status sync needs.
type SyncView struct {
	ID        string
	ProductID string
	Status    Status
	Quantity  int
}
