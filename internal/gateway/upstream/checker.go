package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fathy2028/marketco/internal/logging"
)

// Checker probes every known endpoint's /healthz periodically and feeds the
// results back into the resolver so Resolve skips endpoints that are down.
type Checker struct {
	resolver *StaticResolver
	client   *http.Client
	interval time.Duration
	log      *logrus.Logger
}

func NewChecker(r *StaticResolver, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Checker{
		resolver: r,
		client:   &http.Client{Timeout: 3 * time.Second},
		interval: interval,
		log:      logging.Logger(),
	}
}

// Run probes all endpoints on every tick until the context is cancelled.
func (c *Checker) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}

// Check runs one probe sweep over every known endpoint.
func (c *Checker) Check(ctx context.Context) {
	for _, ep := range c.resolver.Endpoints() {
		healthy := c.probe(ctx, ep)
		c.resolver.SetHealth(ep, healthy)
		if !healthy {
			c.log.WithField("endpoint", ep).Warn("endpoint unhealthy")
		}
	}
}

func (c *Checker) probe(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode/100 == 2
}
