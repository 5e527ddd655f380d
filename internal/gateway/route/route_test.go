package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	return NewTable([]Route{
		{Pattern: "/fallback/**", Upstream: "self"},
		{Pattern: "/api/orders/special", Upstream: "special", StripPrefix: 1},
		{Pattern: "/api/orders/**", Upstream: "order-service", StripPrefix: 1, AuthRequired: true},
		{Pattern: "/api/**", Upstream: "catch-all", StripPrefix: 1},
	})
}

func TestMatchFirstDeclaredWins(t *testing.T) {
	tbl := testTable()

	rt, _, ok := tbl.Match("/api/orders/123")
	require.True(t, ok)
	assert.Equal(t, "order-service", rt.Upstream)

	// declared before the wildcard, so the exact pattern wins
	rt, _, ok = tbl.Match("/api/orders/special")
	require.True(t, ok)
	assert.Equal(t, "special", rt.Upstream)

	rt, _, ok = tbl.Match("/api/cart/7")
	require.True(t, ok)
	assert.Equal(t, "catch-all", rt.Upstream)

	rt, _, ok = tbl.Match("/fallback/orders")
	require.True(t, ok)
	assert.Equal(t, "self", rt.Upstream)
}

func TestMatchSemantics(t *testing.T) {
	tbl := NewTable([]Route{
		{Pattern: "/api/orders/**", Upstream: "order-service"},
		{Pattern: "/health", Upstream: "probe"},
	})

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/api/orders/1", "order-service", true},
		{"/api/orders/", "order-service", true},
		{"/api/orders", "", false}, // wildcard requires the trailing slash
		{"/api/ordersx", "", false},
		{"/health", "probe", true},
		{"/health/live", "", false}, // exact pattern, no wildcard
		{"/nothing", "", false},
	}
	for _, tt := range tests {
		rt, _, ok := tbl.Match(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		if tt.ok {
			assert.Equal(t, tt.want, rt.Upstream, tt.path)
		}
	}
}

func TestStripSegments(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"/api/orders/123", 0, "/api/orders/123"},
		{"/api/orders/123", 1, "/orders/123"},
		{"/api/orders/123", 2, "/123"},
		{"/api/orders/123", 3, "/"},
		{"/api", 2, "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripSegments(tt.path, tt.n))
	}
}

func TestParse(t *testing.T) {
	yaml := `
routes:
  - pattern: /api/orders/**
    upstream: order-service
    strip_prefix: 1
    auth_required: true
    fallback: /fallback/orders
  - pattern: /api/products/**
    upstream: product-service
    strip_prefix: 1
`
	tbl, err := Parse([]byte(yaml))
	require.NoError(t, err)
	require.Len(t, tbl.Routes(), 2)

	rt, fwd, ok := tbl.Match("/api/orders/42")
	require.True(t, ok)
	assert.Equal(t, "/orders/42", fwd)
	assert.True(t, rt.AuthRequired)
	assert.Equal(t, "/fallback/orders", rt.FallbackPath)
	assert.Equal(t, "order-service", rt.Breaker())
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty":            `routes: []`,
		"no leading slash": "routes:\n  - pattern: api/**\n    upstream: x",
		"missing upstream": "routes:\n  - pattern: /api/**",
		"negative strip":   "routes:\n  - pattern: /api/**\n    upstream: x\n    strip_prefix: -1",
		"garbage":          `{{{`,
	}
	for name, y := range cases {
		_, err := Parse([]byte(y))
		assert.Error(t, err, name)
	}
}

func TestHolderReplace(t *testing.T) {
	h := NewHolder(testTable())
	_, _, ok := h.Current().Match("/api/orders/1")
	require.True(t, ok)

	h.Replace(NewTable([]Route{{Pattern: "/only/**", Upstream: "x"}}))
	_, _, ok = h.Current().Match("/api/orders/1")
	assert.False(t, ok)
	_, _, ok = h.Current().Match("/only/this")
	assert.True(t, ok)
}
