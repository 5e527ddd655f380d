package breaker

import (
	"sync"
	"time"

	"github.com/fathy2028/marketco/internal/config"
)

// Group lazily creates one breaker per upstream name. Breakers live for the
// process lifetime once created.
type Group struct {
	cfg config.Breaker

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewGroup(cfg config.Breaker) *Group {
	return &Group{cfg: cfg, breakers: map[string]*Breaker{}}
}

// Get returns the breaker for name, creating it on first use.
func (g *Group) Get(name string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[name]
	if !ok {
		b = New(name, g.cfg)
		g.breakers[name] = b
	}
	return b
}

// Classify maps a finished call to a window outcome. A 5xx, connect error
// or deadline overrun is a failure; anything slower than the slow-call
// bound is slow; 4xx is the caller's fault and counts as success.
func (g *Group) Classify(status int, dur time.Duration, err error) Outcome {
	switch {
	case err != nil:
		return Failure
	case status >= 500:
		return Failure
	case dur >= g.cfg.SlowDuration:
		return Slow
	default:
		return Success
	}
}
