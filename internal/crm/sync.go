package crm

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/dcroitoru/storefront-orders/internal/orders"
	"github.com/dcroitoru/storefront-orders/internal/redisx"
)

type OrderStore interface {
	GetForSync(ctx context.Context, orderID string) (orders.SyncView, error)
	UpdateStatus(ctx context.Context, orderID string, s orders.Status) error
	UpdateQuantity(ctx context.Context, orderID string, qty int) error
}

type StockLedger interface {
	Increment(ctx context.Context, productID string, qty int) error
	ApplyDelta(ctx context.Context, productID string, delta int) error
}

// Syncer applies a webhook batch to orders and stock. Redis is an optional
// dedup fast-path; correctness against redelivery comes from the terminal
// states in the transition table, not from the cache.
type Syncer struct {
	Orders OrderStore
	Stock  StockLedger
	Redis  *redis.Client
}

// Apply processes leads one by one: unknown status ids and missing orders
// are skipped, database errors abort the batch.
func (s *Syncer) Apply(ctx context.Context, leads []LeadUpdate) error {
	for _, lead := range leads {
		target, known := StatusFor(lead.StatusID)
		if !known {
			log.Printf("crm sync: unknown status id %d, lead skipped", lead.StatusID)
			continue
		}
		for _, e := range lead.Entries {
			err := s.applyEntry(ctx, lead.StatusID, target, e)
			if errors.Is(err, orders.ErrOrderNotFound) {
				log.Printf("crm sync: order %s not found, entry skipped", e.OrderID)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// dedupKey folds in every entry field that can change the outcome. The
// cancel marker is part of the key: a redelivery that differs only in the
// marker is a new instruction, not a duplicate.
func dedupKey(statusID int, e LeadEntry) string {
	return fmt.Sprintf(redisx.KeyDedup, "crm",
		fmt.Sprintf("%s:%d:%d:%t", e.OrderID, statusID, e.Quantity, e.Cancelled))
}

func (s *Syncer) applyEntry(ctx context.Context, statusID int, target orders.Status, e LeadEntry) error {
	dkey := dedupKey(statusID, e)
	if s.seen(ctx, dkey) {
		return nil
	}

	ord, err := s.Orders.GetForSync(ctx, e.OrderID)
	if err != nil {
		return err
	}
	// terminal orders are left alone; this is what makes a redelivered
	// cancellation not restock twice
	if ord.Status.IsTerminal() {
		return nil
	}

	st := target
	qty := ord.Quantity

	switch {
	case e.Quantity == 0:
		// operator zeroed the line: full cancellation, full restock
		st = orders.StatusCancelled
	case e.Quantity > 0 && e.Quantity != ord.Quantity:
		// retroactive quantity edit: overwrite and compensate stock
		if err := s.Orders.UpdateQuantity(ctx, e.OrderID, e.Quantity); err != nil {
			return err
		}
		if err := s.Stock.ApplyDelta(ctx, ord.ProductID, ord.Quantity-e.Quantity); err != nil {
			return err
		}
		qty = e.Quantity
	}

	if e.Cancelled {
		st = orders.StatusCancelled
	}

	if orders.CanTransition(ord.Status, st) {
		if err := s.Orders.UpdateStatus(ctx, e.OrderID, st); err != nil {
			return err
		}
		if st.Restocks() {
			if err := s.Stock.Increment(ctx, ord.ProductID, qty); err != nil {
				return err
			}
		}
	}

	s.mark(ctx, dkey)
	return nil
}

func (s *Syncer) seen(ctx context.Context, key string) bool {
	if s.Redis == nil {
		return false
	}
	ok, _ := redisx.Exists(ctx, s.Redis, key)
	return ok
}

func (s *Syncer) mark(ctx context.Context, key string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
}
