package crm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dcroitoru/storefront-orders/internal/orders"
)

// CRM pipeline status ids. 142/143 are the CRM's built-in closed stages,
// the rest are the custom stages of the sales pipeline.
const (
	CodeConfirmed       = 42513073
	CodeHandedToCourier = 42513076
	CodeReturned        = 42513079
	CodeCompleted       = 142
	CodeCancelled       = 143
)

var statusByCode = map[int]orders.Status{
	CodeConfirmed:       orders.StatusConfirmed,
	CodeHandedToCourier: orders.StatusHandedToCourier,
	CodeReturned:        orders.StatusReturned,
	CodeCompleted:       orders.StatusCompleted,
	CodeCancelled:       orders.StatusCancelled,
}

// StatusFor maps a CRM status id onto an order state. Unknown ids mean the
// lead sits in a pipeline stage we do not track.
func StatusFor(code int) (orders.Status, bool) {
	s, ok := statusByCode[code]
	return s, ok
}

// Custom-field labels as configured in the CRM account (Romanian UI).
const (
	fieldOrderNumbers = "numerele comenzilor"
	fieldProductList  = "lista de produse"
)

var (
	ErrNoLeads        = errors.New("missing leads.status")
	ErrMissingField   = errors.New("missing custom field")
	ErrLengthMismatch = errors.New("order list and product list differ in length")
)

// LeadUpdate is one lead from the webhook batch, already correlated: the
// Nth order number belongs to the Nth product-list block.
type LeadUpdate struct {
	StatusID int
	Entries  []LeadEntry
}

type LeadEntry struct {
	OrderID   string
	Quantity  int // -1 when the block carried no quantity marker
	Cancelled bool
}

// Leads pulls the leads.status array out of a decoded webhook form.
func Leads(form Map) ([]Map, error) {
	lv, ok := form.Get("leads")
	if !ok {
		return nil, ErrNoLeads
	}
	lm, ok := lv.(Map)
	if !ok {
		return nil, ErrNoLeads
	}
	sv, ok := lm.Get("status")
	if !ok {
		return nil, ErrNoLeads
	}
	sl, ok := sv.(List)
	if !ok {
		return nil, ErrNoLeads
	}

	out := make([]Map, 0, len(sl))
	for _, v := range sl {
		m, ok := v.(Map)
		if !ok {
			return nil, fmt.Errorf("%w: lead entry is not an object", ErrNoLeads)
		}
		out = append(out, m)
	}
	return out, nil
}

var qtyRe = regexp.MustCompile(`(?i)Cantitate:\s*(\d+)`)

// A manually cancelled line is marked by the operator with a leading "x "
// or a ticked checkbox in the free-text product list. The x must stand on
// its own so product names starting with X do not count.
var cancelRe = regexp.MustCompile(`^\s*(\[[xX]\]|[xX]\s)`)

// ParseLead extracts one lead's status id and its positionally correlated
// order/product entries. The two parallel lists must match in length;
// mismatches are rejected instead of silently truncated.
func ParseLead(lead Map) (LeadUpdate, error) {
	var lu LeadUpdate

	id, err := strconv.Atoi(Str(lead["status_id"]))
	if err != nil {
		return lu, fmt.Errorf("bad status_id %q", Str(lead["status_id"]))
	}
	lu.StatusID = id

	fields, _ := lead["custom_fields"].(List)
	rawOrders, ok := findField(fields, fieldOrderNumbers)
	if !ok {
		return lu, fmt.Errorf("%w: %s", ErrMissingField, fieldOrderNumbers)
	}
	rawList, ok := findField(fields, fieldProductList)
	if !ok {
		return lu, fmt.Errorf("%w: %s", ErrMissingField, fieldProductList)
	}

	ids := splitTrim(rawOrders, ",")
	blocks := splitTrim(rawList, "\n\n")
	if len(ids) != len(blocks) {
		return lu, fmt.Errorf("%w: %d orders, %d blocks", ErrLengthMismatch, len(ids), len(blocks))
	}

	lu.Entries = make([]LeadEntry, 0, len(ids))
	for i, orderID := range ids {
		lu.Entries = append(lu.Entries, LeadEntry{
			OrderID:   orderID,
			Quantity:  parseQuantity(blocks[i]),
			Cancelled: cancelRe.MatchString(blocks[i]),
		})
	}
	return lu, nil
}

// findField looks a custom field up by name, case-insensitively, and returns
// its first value.
func findField(fields List, name string) (string, bool) {
	for _, fv := range fields {
		fm, ok := fv.(Map)
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(Str(fm["name"])), name) {
			continue
		}
		values, ok := fm["values"].(List)
		if !ok || len(values) == 0 {
			return "", false
		}
		switch v := values[0].(type) {
		case String:
			return string(v), true
		case Map:
			return Str(v["value"]), true
		}
	}
	return "", false
}

func parseQuantity(block string) int {
	m := qtyRe.FindStringSubmatch(block)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
