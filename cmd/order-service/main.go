package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/lib/pq"

	"github.com/fathy2028/marketco/internal/broker"
	"github.com/fathy2028/marketco/internal/config"
	"github.com/fathy2028/marketco/internal/httpx"
	"github.com/fathy2028/marketco/internal/logging"
	"github.com/fathy2028/marketco/internal/order"
)

func main() {
	log := logging.Logger()
	cfg := config.LoadOrderService()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	db.SetMaxOpenConns(10)

	store := order.NewSQLStore(db)
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

	svc := order.NewService(store, broker.NewPublisher(conn))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	order.NewHandler(svc).Register(mux)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	log.Infof("order-service listening on :%s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}
