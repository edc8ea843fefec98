package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client creates leads in the CRM after an order was placed. It is called
// from the notifier only; failures there are logged and never bubble back
// into the order flow.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

type NewLead struct {
	Name     string
	Phone    string
	Email    string
	OrderIDs []string
	Total    string
	Source   string
}

func (c *Client) CreateLead(ctx context.Context, lead NewLead) error {
	if c.baseURL == "" {
		// CRM not configured (local/dev), nothing to do
		return nil
	}

	payload := []map[string]any{{
		"name": "Comanda " + strings.Join(lead.OrderIDs, ", "),
		"custom_fields_values": []map[string]any{
			{"field_name": "Numerele comenzilor", "values": []map[string]any{{"value": strings.Join(lead.OrderIDs, ",")}}},
			{"field_name": "Telefon", "values": []map[string]any{{"value": lead.Phone}}},
			{"field_name": "Email", "values": []map[string]any{{"value": lead.Email}}},
			{"field_name": "Total", "values": []map[string]any{{"value": lead.Total}}},
			{"field_name": "Sursa", "values": []map[string]any{{"value": lead.Source}}},
			{"field_name": "Client", "values": []map[string]any{{"value": lead.Name}}},
		},
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v4/leads", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("crm lead create: unexpected status %d", resp.StatusCode)
	}
	return nil
}
