package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dcroitoru/storefront-orders/internal/orders"
)

// Ledger mutates the per-product stock counter. Serialization relies on the
// database's row-level update, nothing above it.
type Ledger struct{ DB *pgxpool.Pool }

// Decrement takes qty units out of stock. The conditional WHERE refuses to
// go below zero; zero affected rows means oversell (or unknown product).
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid qty %d for product %s", qty, productID)
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", orders.ErrInsufficientStock, productID)
	}
	return nil
}

// Increment puts qty units back, used for cancellation/return restocks.
func (l *Ledger) Increment(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid qty %d for product %s", qty, productID)
	}
	return l.applyDelta(ctx, productID, qty)
}

// ApplyDelta applies a signed quantity-correction delta (oldQty - newQty):
// positive restocks, negative takes more out. The CRM operator's correction
// is authoritative, so the negative branch carries no availability check
// here; the stock CHECK constraint is the backstop. A zero delta is a no-op.
func (l *Ledger) ApplyDelta(ctx context.Context, productID string, delta int) error {
	if delta == 0 {
		return nil
	}
	return l.applyDelta(ctx, productID, delta)
}

func (l *Ledger) applyDelta(ctx context.Context, productID string, delta int) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	return nil
}
