package httpx

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dcroitoru/storefront-orders/internal/crm"
)

type WebhookSyncer interface {
	Apply(ctx context.Context, leads []crm.LeadUpdate) error
}

// WebhookHandler receives the CRM's status-change pushes. A broken top-level
// shape is a hard 400; a single broken lead is skipped and the rest of the
// batch still runs.
type WebhookHandler struct {
	Syncer WebhookSyncer
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/crm", h.statusChanged)
}

// webhookBodyLimit caps what the CRM may push in one delivery; real batches
// are a few KB.
const webhookBodyLimit = 1 << 20

func (h *WebhookHandler) statusChanged(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	form, err := crm.ParseForm(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}
	rawLeads, err := crm.Leads(form)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing leads.status")
		return
	}

	leads := make([]crm.LeadUpdate, 0, len(rawLeads))
	for i, rl := range rawLeads {
		lu, err := crm.ParseLead(rl)
		if err != nil {
			log.Printf("crm webhook: lead %d skipped: %v", i, err)
			continue
		}
		leads = append(leads, lu)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Syncer.Apply(ctx, leads); err != nil {
		log.Printf("crm webhook: batch failed: %v", err)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "processed"})
}
