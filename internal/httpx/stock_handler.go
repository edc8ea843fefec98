package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dcroitoru/storefront-orders/internal/orders"
)

type StockLedger interface {
	Decrement(ctx context.Context, productID string, qty int) error
}

// StockHandler keeps the standalone decrement endpoint older storefront
// builds still call. New checkouts decrement inside the intake transaction,
// so this endpoint is only ever hit for legacy carts.
type StockHandler struct {
	Ledger StockLedger
}

type stockUpdateReq struct {
	Quantity int `json:"quantity"`
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Put("/products/stock", h.updateStock)
}

func (h *StockHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}
	var req stockUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "invalid quantity")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Ledger.Decrement(ctx, productID, req.Quantity); err != nil {
		if errors.Is(err, orders.ErrInsufficientStock) {
			writeError(w, http.StatusConflict, "insufficient stock")
			return
		}
		writeError(w, http.StatusInternalServerError, "stock update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
