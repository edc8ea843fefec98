package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dcroitoru/storefront-orders/internal/config"
	"github.com/dcroitoru/storefront-orders/internal/crm"
	kafkax "github.com/dcroitoru/storefront-orders/internal/kafka"
	"github.com/dcroitoru/storefront-orders/internal/notify"
	"github.com/dcroitoru/storefront-orders/internal/orders"
	"github.com/dcroitoru/storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Mailer: &notify.Mailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		},
		CRM:         crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.Token),
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPlaced, workers)

	go func() {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, orders.TopicOrderPlaced, workers)
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
