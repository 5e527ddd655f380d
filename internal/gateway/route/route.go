package route

import (
	"strings"
)

// Route maps a public path pattern onto an upstream logical service name,
// together with the edge policy applied before forwarding.
type Route struct {
	Pattern      string `yaml:"pattern"`       // prefix pattern, e.g. /api/orders/**
	Upstream     string `yaml:"upstream"`      // logical service name, resolved at dispatch
	StripPrefix  int    `yaml:"strip_prefix"`  // leading path segments removed before forwarding
	AuthRequired bool   `yaml:"auth_required"` // gate on JWT verification
	BreakerName  string `yaml:"breaker"`       // defaults to Upstream when empty
	FallbackPath string `yaml:"fallback"`      // local path served on breaker open / upstream failure
}

// Breaker returns the breaker name for the route, defaulting to the upstream.
func (r *Route) Breaker() string {
	if r.BreakerName != "" {
		return r.BreakerName
	}
	return r.Upstream
}

// Table is an ordered route set. Patterns are evaluated in declaration
// order; the first match wins. Tables are immutable once built; reloads
// swap in a fresh Table.
type Table struct {
	routes []Route
}

func NewTable(routes []Route) *Table {
	return &Table{routes: routes}
}

// Match returns the first route whose pattern prefixes path, together with
// the forwarded path after stripping the route's leading segments.
func (t *Table) Match(path string) (*Route, string, bool) {
	for i := range t.routes {
		r := &t.routes[i]
		if matches(r.Pattern, path) {
			return r, stripSegments(path, r.StripPrefix), true
		}
	}
	return nil, "", false
}

// Routes returns the declared routes in order.
func (t *Table) Routes() []Route { return t.routes }

// matches implements prefix-with-terminal-wildcard semantics:
// "/api/x/**" matches any path beginning with "/api/x/"; a pattern without
// the wildcard must match exactly.
func matches(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "**"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}

// stripSegments removes the first n path segments: /api/orders/1 with n=1
// forwards as /orders/1.
func stripSegments(path string, n int) string {
	if n <= 0 {
		return path
	}
	trimmed := strings.TrimPrefix(path, "/")
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(trimmed, '/')
		if idx < 0 {
			return "/"
		}
		trimmed = trimmed[idx+1:]
	}
	return "/" + trimmed
}
