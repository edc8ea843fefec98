//go:build integration
// +build integration

package orders_test

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dcroitoru/storefront-orders/internal/orders"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../scripts/schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, name string, stock int, standard string, discounted *string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products(id, name, stock, standard_price, discounted_price)
		VALUES ($1,$2,$3,$4,$5)`, id, name, stock, standard, discounted)
	require.NoError(t, err)
	return id
}

func productStock(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	var stock int
	err := pool.QueryRow(context.Background(),
		`SELECT stock FROM products WHERE id=$1`, id).Scan(&stock)
	require.NoError(t, err)
	return stock
}

func orderCount(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM orders`).Scan(&n)
	require.NoError(t, err)
	return n
}

func checkoutInput(lines []orders.LineInput) orders.CheckoutInput {
	return orders.CheckoutInput{
		CustomerName:  "Ion Popescu",
		Phone:         "069000000",
		Email:         "ion@example.md",
		Lines:         lines,
		Zone:          orders.ZoneInCity,
		DeliveryCost:  decimal.NewFromInt(50),
		Address:       "str. Stefan cel Mare 1",
		CouponCode:    "SPRING10",
		CouponPercent: decimal.NewFromInt(10),
		CartTotal:     decimal.RequireFromString("1535.00"),
		PaymentMethod: "Numerar la livrare",
		Locale:        "ro",
	}
}

func TestCreateCheckoutSiblingRowsShareSnapshot(t *testing.T) {
	pool := setupTestDB(t)
	repo := &orders.Repo{DB: pool}
	ctx := context.Background()

	disc := "800.00"
	carpet := seedProduct(t, pool, "Covor verde", 10, "1000.00", &disc)
	lamp := seedProduct(t, pool, "Lampa", 5, "50.00", nil)

	// deliberately not sorted by product id
	lines := []orders.LineInput{
		{ProductID: carpet, Qty: 2},
		{ProductID: lamp, Qty: 1},
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID > lines[j].ProductID })

	created, err := repo.CreateCheckout(ctx, checkoutInput(lines))
	require.NoError(t, err)
	require.Len(t, created, 2)

	// every sibling row carries the same batch snapshot
	var distinctCreated, distinctTotal, distinctDelivery, distinctCoupon int
	err = pool.QueryRow(ctx, `
		SELECT count(DISTINCT created_at), count(DISTINCT total),
		       count(DISTINCT delivery_cost), count(DISTINCT coupon_info)
		FROM orders`).
		Scan(&distinctCreated, &distinctTotal, &distinctDelivery, &distinctCoupon)
	require.NoError(t, err)
	assert.Equal(t, 1, distinctCreated, "created_at must be shared")
	assert.Equal(t, 1, distinctTotal, "total must be shared")
	assert.Equal(t, 1, distinctDelivery, "delivery_cost must be shared")
	assert.Equal(t, 1, distinctCoupon, "coupon_info must be shared")

	var total, delivery, coupon string
	err = pool.QueryRow(ctx, `
		SELECT total::text, delivery_cost::text, coupon_info
		FROM orders LIMIT 1`).Scan(&total, &delivery, &coupon)
	require.NoError(t, err)
	assert.Equal(t, "1535.00", total)
	assert.Equal(t, "50.00", delivery)
	assert.Equal(t, "SPRING10 (-10%)", coupon)

	// unit prices are recomputed server-side: discounted price when it
	// undercuts the standard one, then the coupon on top
	var carpetUnit, lampUnit string
	err = pool.QueryRow(ctx,
		`SELECT unit_price::text FROM orders WHERE product_id=$1`, carpet).Scan(&carpetUnit)
	require.NoError(t, err)
	err = pool.QueryRow(ctx,
		`SELECT unit_price::text FROM orders WHERE product_id=$1`, lamp).Scan(&lampUnit)
	require.NoError(t, err)
	assert.Equal(t, "720.00", carpetUnit)
	assert.Equal(t, "45.00", lampUnit)

	// stock decremented inside the same transaction
	assert.Equal(t, 8, productStock(t, pool, carpet))
	assert.Equal(t, 4, productStock(t, pool, lamp))
}

func TestCreateCheckoutUnknownProductRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	repo := &orders.Repo{DB: pool}

	carpet := seedProduct(t, pool, "Covor verde", 5, "1000.00", nil)

	_, err := repo.CreateCheckout(context.Background(), checkoutInput([]orders.LineInput{
		{ProductID: carpet, Qty: 2},
		{ProductID: uuid.NewString(), Qty: 1},
	}))
	require.ErrorIs(t, err, orders.ErrProductNotFound)

	assert.Equal(t, 0, orderCount(t, pool), "no partial batch may survive")
	assert.Equal(t, 5, productStock(t, pool, carpet), "decrement must roll back")
}

func TestCreateCheckoutOversellRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	repo := &orders.Repo{DB: pool}

	carpet := seedProduct(t, pool, "Covor verde", 10, "1000.00", nil)
	lamp := seedProduct(t, pool, "Lampa", 1, "50.00", nil)

	_, err := repo.CreateCheckout(context.Background(), checkoutInput([]orders.LineInput{
		{ProductID: carpet, Qty: 2},
		{ProductID: lamp, Qty: 5},
	}))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	assert.Equal(t, 0, orderCount(t, pool), "no partial batch may survive")
	assert.Equal(t, 10, productStock(t, pool, carpet))
	assert.Equal(t, 1, productStock(t, pool, lamp))
}
