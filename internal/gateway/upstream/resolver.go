// Package upstream resolves logical service names to network endpoints.
// Discovery itself is an external collaborator; this resolver reads static
// endpoint sets from the environment and balances across them.
package upstream

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrUnresolved is returned when a logical name has no known endpoints.
var ErrUnresolved = errors.New("upstream unresolved")

// Resolver maps a logical upstream name to one endpoint base URL. The
// choice is sticky only within a single call; callers retrying a request
// reuse the endpoint they were given.
type Resolver interface {
	Resolve(name string) (string, error)
}

// StaticResolver round-robins across a fixed endpoint set per upstream,
// skipping endpoints a health probe has marked down. Endpoints start
// healthy until a probe says otherwise.
type StaticResolver struct {
	mu        sync.Mutex
	endpoints map[string][]string
	next      map[string]int
	unhealthy map[string]bool
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		endpoints: map[string][]string{},
		next:      map[string]int{},
		unhealthy: map[string]bool{},
	}
}

// FromEnv builds a resolver from UPSTREAM_<NAME> variables, each holding a
// comma-separated endpoint list, e.g. UPSTREAM_ORDERS=orders-1:8083,orders-2:8083.
// Dashes in logical names map to underscores in the variable name.
func FromEnv() *StaticResolver {
	r := NewStaticResolver()
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "UPSTREAM_") || v == "" {
			continue
		}
		name := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "UPSTREAM_")), "_", "-")
		r.Set(name, strings.Split(v, ","))
	}
	return r
}

// Set replaces the endpoint list for an upstream.
func (r *StaticResolver) Set(name string, eps []string) {
	cleaned := make([]string, 0, len(eps))
	for _, e := range eps {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "://") {
			e = "http://" + e
		}
		cleaned = append(cleaned, strings.TrimRight(e, "/"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = cleaned
	r.next[name] = 0
	for _, e := range cleaned {
		delete(r.unhealthy, e)
	}
}

// SetHealth marks one endpoint up or down. Probes call it; Resolve skips
// endpoints marked down.
func (r *StaticResolver) SetHealth(endpoint string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if healthy {
		delete(r.unhealthy, endpoint)
	} else {
		r.unhealthy[endpoint] = true
	}
}

// Endpoints returns every known endpoint across all upstreams, deduplicated.
func (r *StaticResolver) Endpoints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, eps := range r.endpoints {
		for _, e := range eps {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Resolve returns the next healthy endpoint for name in round-robin order.
// When every endpoint is marked down the full set is used again; probe
// state may be stale and the breaker judges real outcomes.
func (r *StaticResolver) Resolve(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[name]
	if len(eps) == 0 {
		return "", ErrUnresolved
	}
	healthy := eps[:0:0]
	for _, e := range eps {
		if !r.unhealthy[e] {
			healthy = append(healthy, e)
		}
	}
	if len(healthy) == 0 {
		healthy = eps
	}
	i := r.next[name] % len(healthy)
	r.next[name]++
	return healthy[i], nil
}
