package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/dcroitoru/storefront-orders/internal/crm"
	"github.com/dcroitoru/storefront-orders/internal/kafka"
	"github.com/dcroitoru/storefront-orders/internal/orders"
	"github.com/dcroitoru/storefront-orders/internal/redisx"
)

// Service consumes order.placed events and fires the best-effort side
// effects: confirmation email and CRM lead creation. Neither may fail the
// order, so errors are logged and the offset is committed regardless.
type Service struct {
	Mailer      *Mailer
	CRM         *crm.Client
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderPlaced is wired as the consumer handler.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	// dedup via event_id so redeliveries do not mail twice
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafka.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	if p.Email != "" {
		c := Confirmation{
			CustomerName:  p.CustomerName,
			OrderIDs:      p.OrderIDs,
			Items:         toItems(p.Items),
			Total:         p.Total,
			DeliveryCost:  p.DeliveryCost,
			Address:       p.Address,
			PaymentMethod: p.PaymentMethod,
		}
		if err := s.Mailer.SendConfirmation(p.Email, p.Locale, c); err != nil {
			log.Printf("confirmation email for %v failed: %v", p.OrderIDs, err)
		}
	}

	lead := crm.NewLead{
		Name:     p.CustomerName,
		Phone:    p.Phone,
		Email:    p.Email,
		OrderIDs: p.OrderIDs,
		Total:    p.Total,
		Source:   s.ServiceName,
	}
	if err := s.CRM.CreateLead(ctx, lead); err != nil {
		log.Printf("crm lead for %v failed: %v", p.OrderIDs, err)
	}
	return nil
}

func toItems(in []orders.PlacedItem) []Item {
	out := make([]Item, 0, len(in))
	for _, it := range in {
		out = append(out, Item{Name: it.Name, Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	return out
}
