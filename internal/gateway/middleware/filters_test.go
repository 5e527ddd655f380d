package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathy2028/marketco/internal/config"
	"github.com/fathy2028/marketco/internal/gateway/auth"
	"github.com/fathy2028/marketco/internal/gateway/ratelimit"
	"github.com/fathy2028/marketco/internal/gateway/route"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(base64.StdEncoding.EncodeToString(testKey))
	require.NoError(t, err)
	return v
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testKey)
	require.NoError(t, err)
	return tok
}

func testHolder() *route.Holder {
	return route.NewHolder(route.NewTable([]route.Route{
		{Pattern: "/api/orders/**", Upstream: "order-service", StripPrefix: 1, AuthRequired: true},
		{Pattern: "/api/products/**", Upstream: "product-service", StripPrefix: 1},
	}))
}

// mark records whether the terminal handler ran.
func mark(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestMatchRoute(t *testing.T) {
	var hit bool
	var gotPath string
	h := MatchRoute(testHolder())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		_, gotPath, _ = MatchFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders/123", nil))
	assert.True(t, hit)
	assert.Equal(t, "/orders/123", gotPath)

	hit = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	assert.False(t, hit)
	assert.Equal(t, 404, rec.Code)
	assert.Contains(t, rec.Body.String(), "no route")
}

func TestJWTMissingToken(t *testing.T) {
	var hit bool
	chain := Chain(MatchRoute(testHolder()), JWT(testVerifier(t)))(mark(&hit))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders/123", nil))

	assert.False(t, hit, "upstream handler must not run")
	assert.Equal(t, 401, rec.Code)
	assert.Empty(t, rec.Body.String(), "401 carries an empty body")
}

func TestJWTInvalidToken(t *testing.T) {
	var hit bool
	chain := Chain(MatchRoute(testHolder()), JWT(testVerifier(t)))(mark(&hit))

	req := httptest.NewRequest("GET", "/api/orders/123", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.False(t, hit)
	assert.Equal(t, 401, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestJWTValidTokenSetsSubject(t *testing.T) {
	var sub string
	chain := Chain(MatchRoute(testHolder()), JWT(testVerifier(t)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub = SubjectFrom(r.Context())
		}))

	req := httptest.NewRequest("GET", "/api/orders/123", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-7"))
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, "user-7", sub)
}

func TestJWTSkipsUnauthenticatedRoutes(t *testing.T) {
	var hit bool
	chain := Chain(MatchRoute(testHolder()), JWT(testVerifier(t)))(mark(&hit))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest("GET", "/api/products/1", nil))
	assert.True(t, hit)
	assert.Equal(t, 200, rec.Code)
}

func TestRateLimitDenies(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(ratelimitConfig(2))
	var hits int
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.9:1111"
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 2, hits)
	assert.Equal(t, 429, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimitFailsOpen(t *testing.T) {
	var hit bool
	h := RateLimit(failingLimiter{})(mark(&hit))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.True(t, hit)
	assert.Equal(t, 200, rec.Code)
}

func TestRecover(t *testing.T) {
	h := Recover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, 500, rec.Code)
}

func ratelimitConfig(capacity float64) config.RateLimit {
	return config.RateLimit{Rate: 10, Capacity: capacity, Cost: 1}
}

type failingLimiter struct{}

func (failingLimiter) Take(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, assert.AnError
}
