package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/dcroitoru/storefront-orders/internal/kafka"
	"github.com/dcroitoru/storefront-orders/internal/orders"
	"github.com/dcroitoru/storefront-orders/internal/redisx"
)

type OrderStore interface {
	CreateCheckout(ctx context.Context, in orders.CheckoutInput) ([]orders.CreatedLine, error)
	CreateFastOrder(ctx context.Context, in orders.FastOrderInput) (orders.CreatedLine, string, error)
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Store    OrderStore
	Producer Publisher
	Redis    *redis.Client
	Rates    orders.DeliveryRates
	Service  string
}

// Checkout submission, field names as the storefront sends them.
type CreateOrderReq struct {
	UserID         string             `json:"userId,omitempty"`
	NumePrenume    string             `json:"numePrenume"`
	NumarTelefon   string             `json:"numarTelefon"`
	Products       []orders.LineInput `json:"products"`
	DeliveryZone   string             `json:"deliveryZone"`
	IsFreeDelivery bool               `json:"isFreeDelivery"`
	Address        string             `json:"address"`
	CouponCode     string             `json:"couponCode,omitempty"`
	CouponDiscount float64            `json:"couponDiscount,omitempty"`
	Total          float64            `json:"total"`
	PaymentMethod  string             `json:"paymentMethod"`
	Email          string             `json:"email"`
	Locale         string             `json:"locale"`
}

type CreateOrderResp struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	OrderIDs []string `json:"orderIds"`
}

type FastOrderReq struct {
	UserID         string  `json:"userId,omitempty"`
	NumePrenume    string  `json:"numePrenume"`
	NumarTelefon   string  `json:"numarTelefon"`
	Email          string  `json:"email,omitempty"`
	ProductID      string  `json:"productId"`
	Quantity       int     `json:"quantity"`
	DeliveryZone   string  `json:"deliveryZone"`
	IsFreeDelivery bool    `json:"isFreeDelivery"`
	Locale         string  `json:"locale"`
	ProductPrice   float64 `json:"productPrice"` // display-only; pricing is recomputed server-side
}

type FastOrderResp struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Address string `json:"address"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/fast", h.createFastOrder)
	r.Get("/orders/{id}", h.getOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Products) == 0 {
		writeError(w, http.StatusBadRequest, "empty product list")
		return
	}
	if req.NumePrenume == "" || req.NumarTelefon == "" {
		writeError(w, http.StatusBadRequest, "missing contact fields")
		return
	}
	zone := orders.DeliveryZone(req.DeliveryZone)
	if !zone.Valid() {
		writeError(w, http.StatusBadRequest, "invalid delivery zone")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	fee := h.Rates.Fee(zone, req.IsFreeDelivery)
	in := orders.CheckoutInput{
		UserID:        req.UserID,
		CustomerName:  req.NumePrenume,
		Phone:         req.NumarTelefon,
		Email:         req.Email,
		Lines:         req.Products,
		Zone:          zone,
		DeliveryCost:  fee,
		Address:       req.Address,
		CouponCode:    req.CouponCode,
		CouponPercent: decimal.NewFromFloat(req.CouponDiscount),
		CartTotal:     decimal.NewFromFloat(req.Total),
		PaymentMethod: req.PaymentMethod,
		Locale:        req.Locale,
	}

	created, err := h.Store.CreateCheckout(ctx, in)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	ids := make([]string, 0, len(created))
	for _, c := range created {
		ids = append(ids, c.OrderID)
		h.cacheStatus(ctx, c.OrderID, orders.StatusReceived)
	}

	couponInfo := ""
	if s := orders.CouponInfo(req.CouponCode, in.CouponPercent); s != nil {
		couponInfo = *s
	}
	h.publishPlaced(r, orders.OrderPlacedPayload{
		OrderIDs:      ids,
		CustomerName:  req.NumePrenume,
		Phone:         req.NumarTelefon,
		Email:         req.Email,
		Locale:        req.Locale,
		Address:       req.Address,
		Items:         toPlacedItems(created),
		Total:         in.CartTotal.StringFixed(2),
		DeliveryCost:  fee.StringFixed(2),
		CouponInfo:    couponInfo,
		PaymentMethod: req.PaymentMethod,
	})

	writeJSON(w, http.StatusCreated, CreateOrderResp{
		Success:  true,
		Message:  "order created",
		OrderIDs: ids,
	})
}

func (h *OrdersHandler) createFastOrder(w http.ResponseWriter, r *http.Request) {
	var req FastOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "missing product")
		return
	}
	if req.NumePrenume == "" || req.NumarTelefon == "" {
		writeError(w, http.StatusBadRequest, "missing contact fields")
		return
	}
	zone := orders.DeliveryZone(req.DeliveryZone)
	if !zone.Valid() {
		writeError(w, http.StatusBadRequest, "invalid delivery zone")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	fee := h.Rates.Fee(zone, req.IsFreeDelivery)
	in := orders.FastOrderInput{
		UserID:        req.UserID,
		CustomerName:  req.NumePrenume,
		Phone:         req.NumarTelefon,
		Email:         req.Email,
		ProductID:     req.ProductID,
		Qty:           req.Quantity,
		Zone:          zone,
		DeliveryCost:  fee,
		PaymentMethod: paymentLabel(req.Locale),
		Locale:        req.Locale,
	}

	created, address, err := h.Store.CreateFastOrder(ctx, in)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}
	h.cacheStatus(ctx, created.OrderID, orders.StatusReceived)

	total := created.UnitPrice.Mul(decimal.NewFromInt(int64(created.Qty))).Add(fee)
	h.publishPlaced(r, orders.OrderPlacedPayload{
		OrderIDs:      []string{created.OrderID},
		CustomerName:  req.NumePrenume,
		Phone:         req.NumarTelefon,
		Email:         req.Email,
		Locale:        req.Locale,
		Address:       address,
		Items:         toPlacedItems([]orders.CreatedLine{created}),
		Total:         total.StringFixed(2),
		DeliveryCost:  fee.StringFixed(2),
		PaymentMethod: in.PaymentMethod,
	})

	writeJSON(w, http.StatusCreated, FastOrderResp{
		Success: true,
		OrderID: created.OrderID,
		Address: address,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	status, err := h.Store.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	body, _ := json.Marshal(map[string]any{"status": status})
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeCreateError maps intake failures onto the API envelope without
// leaking SQL details to the storefront.
func (h *OrdersHandler) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty product list")
	case errors.Is(err, orders.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, orders.ErrProductNotFound):
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "order placement failed", "details": "unknown product",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "order placement failed", "details": "internal error",
		})
	}
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, s orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": s})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishPlaced(r *http.Request, p orders.OrderPlacedPayload) {
	if h.Producer == nil || len(p.OrderIDs) == 0 {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: p.OrderIDs[0],
	}
	ev.Payload = kafkax.MustMarshal(p)
	h.Producer.Publish(orders.PartitionKey(p.OrderIDs[0]), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func toPlacedItems(created []orders.CreatedLine) []orders.PlacedItem {
	out := make([]orders.PlacedItem, 0, len(created))
	for _, c := range created {
		out = append(out, orders.PlacedItem{
			OrderID:   c.OrderID,
			ProductID: c.ProductID,
			Name:      c.ProductName,
			Qty:       c.Qty,
			UnitPrice: c.UnitPrice.StringFixed(2),
		})
	}
	return out
}

// paymentLabel is the cash-on-delivery label the fast-order flow snapshots;
// the full checkout sends its own label.
func paymentLabel(locale string) string {
	if locale == "ru" {
		return "Наличными при доставке"
	}
	return "Numerar la livrare"
}
