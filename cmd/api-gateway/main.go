package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/fathy2028/marketco/internal/config"
	"github.com/fathy2028/marketco/internal/gateway"
	"github.com/fathy2028/marketco/internal/gateway/auth"
	"github.com/fathy2028/marketco/internal/gateway/ratelimit"
	"github.com/fathy2028/marketco/internal/gateway/route"
	"github.com/fathy2028/marketco/internal/gateway/upstream"
	"github.com/fathy2028/marketco/internal/logging"
)

func main() {
	log := logging.Logger()
	cfg := config.LoadGateway()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required for the api-gateway")
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("jwt verifier: %v", err)
	}

	table, err := route.Load(cfg.RoutesFile)
	if err != nil {
		log.Fatalf("routes: %v", err)
	}
	routes := route.NewHolder(table)

	// reload the route table atomically on SIGHUP
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			t, err := route.Load(cfg.RoutesFile)
			if err != nil {
				log.WithError(err).Error("route reload failed, keeping current table")
				continue
			}
			routes.Replace(t)
			log.WithField("routes", len(t.Routes())).Info("route table reloaded")
		}
	}()

	// shared Redis coordinates buckets across replicas; without it the
	// bucket lives in process memory
	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(cfg.RateLimit, rdb)
	} else {
		log.Warn("REDIS_ADDR not set; rate limiting is per-replica only")
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit)
	}

	resolver := upstream.FromEnv()
	go upstream.NewChecker(resolver, cfg.HealthInterval).Run(context.Background())

	srv := gateway.NewServer(gateway.Options{
		Cfg:      cfg,
		Routes:   routes,
		Resolver: resolver,
		Limiter:  limiter,
		Verifier: verifier,
	})

	log.Infof("api-gateway listening on :%s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}
