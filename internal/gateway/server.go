// Package gateway wires the edge-plane: route matching, JWT verification,
// rate limiting, circuit breaking and upstream forwarding.
package gateway

import (
	"net/http"

	"github.com/fathy2028/marketco/internal/config"
	"github.com/fathy2028/marketco/internal/gateway/auth"
	"github.com/fathy2028/marketco/internal/gateway/breaker"
	"github.com/fathy2028/marketco/internal/gateway/fallback"
	"github.com/fathy2028/marketco/internal/gateway/middleware"
	"github.com/fathy2028/marketco/internal/gateway/proxy"
	"github.com/fathy2028/marketco/internal/gateway/ratelimit"
	"github.com/fathy2028/marketco/internal/gateway/route"
	"github.com/fathy2028/marketco/internal/gateway/upstream"
	"github.com/fathy2028/marketco/internal/httpx"
)

// Options carries the collaborators the server is built from.
type Options struct {
	Cfg      config.Gateway
	Routes   *route.Holder
	Resolver upstream.Resolver
	Limiter  ratelimit.Limiter
	Verifier *auth.Verifier
}

// NewServer assembles the gateway HTTP server. The proxy chain runs, in
// order: recover, access log, route match, JWT, rate limit; the forwarder
// applies the breaker and fallback last. /fallback/ is registered on the
// mux ahead of the catch-all so no wildcard route can shadow it.
func NewServer(opts Options) *http.Server {
	breakers := breaker.NewGroup(opts.Cfg.Breaker)
	fwd := proxy.NewForwarder(opts.Resolver, breakers, opts.Cfg.Breaker.Timeout)

	chain := middleware.Chain(
		middleware.Recover(),
		middleware.AccessLog(),
		middleware.MatchRoute(opts.Routes),
		middleware.JWT(opts.Verifier),
		middleware.RateLimit(opts.Limiter),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/fallback/", fallback.Handler())
	mux.Handle("/", chain(fwd))

	return &http.Server{Addr: ":" + opts.Cfg.Port, Handler: mux}
}
