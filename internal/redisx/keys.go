package redisx

import "time"

const (
	// Cache of order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup for processed events/leads: dedup:{consumer}:{id}
	// id = event_id for kafka consumers, {order_id}:{status_id} for CRM leads.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
