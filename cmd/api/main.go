package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dcroitoru/storefront-orders/internal/config"
	"github.com/dcroitoru/storefront-orders/internal/crm"
	"github.com/dcroitoru/storefront-orders/internal/httpx"
	"github.com/dcroitoru/storefront-orders/internal/inventory"
	kafkax "github.com/dcroitoru/storefront-orders/internal/kafka"
	"github.com/dcroitoru/storefront-orders/internal/orders"
	"github.com/dcroitoru/storefront-orders/internal/postgres"
	"github.com/dcroitoru/storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	ledger := &inventory.Ledger{DB: db}
	rates := orders.DeliveryRates{
		InCity:      cfg.DeliveryFeeInCity,
		OutsideCity: cfg.DeliveryFeeOutsideCity,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Store:    repo,
		Producer: prod,
		Redis:    rdb,
		Rates:    rates,
		Service:  cfg.ServiceName,
	}
	oh.Register(router)

	sh := &httpx.StockHandler{Ledger: ledger}
	sh.Register(router)

	wh := &httpx.WebhookHandler{
		Syncer: &crm.Syncer{Orders: repo, Stock: ledger, Redis: rdb},
	}
	wh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	cancel()
	prod.WaitClosed()
}
