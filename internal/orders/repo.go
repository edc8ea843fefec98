package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart         = errors.New("empty product list")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
)

// Orders are timestamped in the business timezone, not the server's.
var businessTZ = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Chisinau")
	if err != nil {
		return time.FixedZone("EET", 2*60*60)
	}
	return loc
}()

type LineInput struct {
	ProductID string `json:"id"`
	Qty       int    `json:"quantity"`
}

type CheckoutInput struct {
	UserID        string
	CustomerName  string
	Phone         string
	Email         string
	Lines         []LineInput
	Zone          DeliveryZone
	DeliveryCost  decimal.Decimal
	Address       string
	CouponCode    string
	CouponPercent decimal.Decimal
	CartTotal     decimal.Decimal
	PaymentMethod string
	Locale        string
}

type FastOrderInput struct {
	UserID        string
	CustomerName  string
	Phone         string
	Email         string
	ProductID     string
	Qty           int
	Zone          DeliveryZone
	DeliveryCost  decimal.Decimal
	PaymentMethod string
	Locale        string
}

// CreatedLine is what intake hands back per inserted row; the handler builds
// the OrderPlaced payload from it without a second read.
type CreatedLine struct {
	OrderID     string
	ProductID   string
	ProductName string
	Qty         int
	UnitPrice   decimal.Decimal
}

type Repo struct{ DB *pgxpool.Pool }

// CreateCheckout persists one order row per cart line inside a single
// transaction. Unit prices are always recomputed from the products table;
// the client-sent cart total is stored as the shared snapshot but never
// drives pricing. The stock decrement is guarded and part of the same
// transaction, so either every line fits in stock or nothing is written.
func (r *Repo) CreateCheckout(ctx context.Context, in CheckoutInput) ([]CreatedLine, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	couponInfo := CouponInfo(in.CouponCode, in.CouponPercent)

	// one batch timestamp shared by every sibling row
	createdAt := time.Now().In(businessTZ)

	// lock product rows in a stable order; two checkouts listing the same
	// products in opposite order must not deadlock each other
	lines := make([]LineInput, len(in.Lines))
	copy(lines, in.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	out := make([]CreatedLine, 0, len(lines))
	for _, line := range lines {
		if line.Qty <= 0 {
			return nil, fmt.Errorf("invalid qty for product %s", line.ProductID)
		}

		created, err := insertLine(ctx, tx, in, line, couponInfo, createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateFastOrder is the single-product "buy now" path. The total is
// computed server-side (unit price x qty + delivery), and a saved address
// is resolved from the user profile when the buyer is logged in.
func (r *Repo) CreateFastOrder(ctx context.Context, in FastOrderInput) (CreatedLine, string, error) {
	if in.Qty <= 0 {
		return CreatedLine{}, "", fmt.Errorf("invalid qty for product %s", in.ProductID)
	}

	address := ""
	if in.UserID != "" {
		err := r.DB.QueryRow(ctx, `SELECT address FROM users WHERE id=$1`, in.UserID).Scan(&address)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return CreatedLine{}, "", err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CreatedLine{}, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	name, unit, err := lockPrice(ctx, tx, in.ProductID)
	if err != nil {
		return CreatedLine{}, "", err
	}
	total := unit.Mul(decimal.NewFromInt(int64(in.Qty))).Add(in.DeliveryCost).Round(2)

	if err := reserveStock(ctx, tx, in.ProductID, in.Qty); err != nil {
		return CreatedLine{}, "", err
	}

	orderID := uuid.NewString()
	createdAt := time.Now().In(businessTZ)
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, status, customer_name, phone, email, product_id, quantity,
		                   unit_price, delivery_cost, total, delivery_address, coupon_info,
		                   payment_method, locale, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULL,$12,$13,$14)`,
		orderID, StatusReceived, in.CustomerName, in.Phone, in.Email, in.ProductID, in.Qty,
		unit, in.DeliveryCost, total, address, in.PaymentMethod, in.Locale, createdAt,
	)
	if err != nil {
		return CreatedLine{}, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreatedLine{}, "", err
	}
	return CreatedLine{
		OrderID:     orderID,
		ProductID:   in.ProductID,
		ProductName: name,
		Qty:         in.Qty,
		UnitPrice:   unit,
	}, address, nil
}

func insertLine(ctx context.Context, tx pgx.Tx, in CheckoutInput, line LineInput, couponInfo *string, createdAt time.Time) (CreatedLine, error) {
	name, base, err := lockPrice(ctx, tx, line.ProductID)
	if err != nil {
		return CreatedLine{}, err
	}
	unit := ApplyCoupon(base, in.CouponPercent)

	if err := reserveStock(ctx, tx, line.ProductID, line.Qty); err != nil {
		return CreatedLine{}, err
	}

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, status, customer_name, phone, email, product_id, quantity,
		                   unit_price, delivery_cost, total, delivery_address, coupon_info,
		                   payment_method, locale, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		orderID, StatusReceived, in.CustomerName, in.Phone, in.Email, line.ProductID, line.Qty,
		unit, in.DeliveryCost, in.CartTotal, in.Address, couponInfo,
		in.PaymentMethod, in.Locale, createdAt,
	)
	if err != nil {
		return CreatedLine{}, err
	}
	return CreatedLine{
		OrderID:     orderID,
		ProductID:   line.ProductID,
		ProductName: name,
		Qty:         line.Qty,
		UnitPrice:   unit,
	}, nil
}

// lockPrice loads the product's price snapshot under FOR UPDATE so the
// stock guard that follows sees a stable row.
func lockPrice(ctx context.Context, tx pgx.Tx, productID string) (string, decimal.Decimal, error) {
	var (
		name       string
		standard   decimal.Decimal
		discounted decimal.NullDecimal
	)
	err := tx.QueryRow(ctx, `
		SELECT name, standard_price, discounted_price
		FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&name, &standard, &discounted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", decimal.Zero, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return "", decimal.Zero, err
	}

	var dp *decimal.Decimal
	if discounted.Valid {
		dp = &discounted.Decimal
	}
	return name, EffectivePrice(standard, dp), nil
}

// reserveStock is the guarded decrement: the WHERE clause refuses to push
// stock below zero and the affected-row count is how oversell is detected.
func reserveStock(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	return nil
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// GetForSync loads the slice of an order the CRM webhook needs.
func (r *Repo) GetForSync(ctx context.Context, orderID string) (SyncView, error) {
	var v SyncView
	v.ID = orderID
	var s string
	err := r.DB.QueryRow(ctx, `
		SELECT product_id, status, quantity FROM orders WHERE id=$1`, orderID).
		Scan(&v.ProductID, &s, &v.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return SyncView{}, ErrOrderNotFound
	}
	if err != nil {
		return SyncView{}, err
	}
	v.Status = Status(s)
	return v, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, orderID string, s Status) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, s)
	return err
}

// UpdateQuantity is only ever called by the CRM sync; intake never edits
// quantity after insert.
func (r *Repo) UpdateQuantity(ctx context.Context, orderID string, qty int) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET quantity=$2 WHERE id=$1`, orderID, qty)
	return err
}
