package fallback

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceFallbacks(t *testing.T) {
	h := Handler()
	tests := map[string]struct {
		service string
		error   string
	}{
		"/fallback/auth":     {"auth-service", "Authentication service is currently unavailable"},
		"/fallback/products": {"product-service", "Product service is currently unavailable"},
		"/fallback/orders":   {"order-service", "Order service is currently unavailable"},
		"/fallback/cart":     {"cart-service", "Cart service is currently unavailable"},
		"/fallback/payments": {"payment-service", "Payment service is currently unavailable"},
	}
	for path, want := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

		assert.Equal(t, 503, rec.Code, path)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), path)
		assert.Equal(t, want.service, body["service"], path)
		assert.Equal(t, want.error, body["error"], path)
		assert.Equal(t, "Please try again later", body["message"], path)
		assert.NotEmpty(t, body["timestamp"], path)
	}
}

func TestHealthFallback(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/fallback/health", nil))

	assert.Equal(t, 200, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "api-gateway", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestUnknownFallbackIs404(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/fallback/nope", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestServeFor(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeFor(rec, "/fallback/orders")

	assert.Equal(t, 503, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "order-service", body["service"])
}
