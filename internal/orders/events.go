package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced = "OrderPlaced"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // checkout batch id
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

// OrderPlacedPayload carries everything the notifier needs to send the
// confirmation email and create the CRM lead without hitting the database.
type OrderPlacedPayload struct {
	OrderIDs      []string     `json:"order_ids"`
	CustomerName  string       `json:"customer_name"`
	Phone         string       `json:"phone"`
	Email         string       `json:"email,omitempty"`
	Locale        string       `json:"locale"`
	Address       string       `json:"address"`
	Items         []PlacedItem `json:"items"`
	Total         string       `json:"total"`
	DeliveryCost  string       `json:"delivery_cost"`
	CouponInfo    string       `json:"coupon_info,omitempty"`
	PaymentMethod string       `json:"payment_method"`
}
