package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/fathy2028/marketco/internal/broker"
	"github.com/fathy2028/marketco/internal/config"
	"github.com/fathy2028/marketco/internal/logging"
	"github.com/fathy2028/marketco/internal/product"
)

func main() {
	log := logging.Logger()
	cfg := config.LoadProductWorker()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	db.SetMaxOpenConns(10)

	store := product.NewSQLStockStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("db init: %v", err)
	}

	conn, err := broker.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("broker: %v", err)
	}
	defer conn.Close()
	if err := conn.DeclareTopology(); err != nil {
		log.Fatalf("broker topology: %v", err)
	}

	listener, err := product.NewListener(store, cfg.PoolSize)
	if err != nil {
		log.Fatalf("listener: %v", err)
	}
	defer listener.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("product-worker consuming stock queues (pool size %d)", cfg.PoolSize)
	if err := listener.Run(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("listener: %v", err)
	}
	log.Info("product-worker shutting down")
}
