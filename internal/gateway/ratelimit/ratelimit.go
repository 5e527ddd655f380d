// Package ratelimit implements the per-identity token bucket guarding the
// edge. Two backends exist: an in-process bucket map for single-replica
// deployments and a Redis-scripted bucket shared across gateway replicas.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/fathy2028/marketco/internal/config"
)

// Decision is the outcome of a single take.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // populated when denied
}

// Limiter grants or denies a request for an identity key. Takes for the
// same key are linearizable; distinct keys are independent.
type Limiter interface {
	Take(ctx context.Context, key string) (Decision, error)
}

type bucket struct {
	tokens float64
	last   time.Time
}

// LocalLimiter keeps buckets in process memory under a single mutex.
type LocalLimiter struct {
	cfg config.RateLimit
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewLocalLimiter(cfg config.RateLimit) *LocalLimiter {
	return &LocalLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: map[string]*bucket{},
	}
}

func (l *LocalLimiter) Take(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		// first touch starts from a full bucket
		b = &bucket{tokens: l.cfg.Capacity, last: now}
		l.buckets[key] = b
	}

	// lazy refill, clamped to capacity
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(l.cfg.Capacity, b.tokens+elapsed*l.cfg.Rate)
		b.last = now
	}

	if b.tokens >= l.cfg.Cost {
		b.tokens -= l.cfg.Cost
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, RetryAfter: retryAfter(l.cfg, b.tokens)}, nil
}

// retryAfter is ceil((cost-tokens)/rate) in whole seconds, at least one.
func retryAfter(cfg config.RateLimit, tokens float64) time.Duration {
	secs := math.Ceil((cfg.Cost - tokens) / cfg.Rate)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
