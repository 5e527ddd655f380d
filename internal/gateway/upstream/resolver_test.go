package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoundRobins(t *testing.T) {
	r := NewStaticResolver()
	r.Set("orders", []string{"a:8083", "b:8083"})

	var got []string
	for i := 0; i < 4; i++ {
		ep, err := r.Resolve("orders")
		require.NoError(t, err)
		got = append(got, ep)
	}
	assert.Equal(t, []string{
		"http://a:8083", "http://b:8083",
		"http://a:8083", "http://b:8083",
	}, got)
}

func TestResolveUnknownName(t *testing.T) {
	r := NewStaticResolver()
	_, err := r.Resolve("nowhere")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveSkipsUnhealthyEndpoint(t *testing.T) {
	r := NewStaticResolver()
	r.Set("orders", []string{"a:8083", "b:8083"})
	r.SetHealth("http://a:8083", false)

	for i := 0; i < 4; i++ {
		ep, err := r.Resolve("orders")
		require.NoError(t, err)
		assert.Equal(t, "http://b:8083", ep)
	}
}

func TestResolveRecoveredEndpointRejoins(t *testing.T) {
	r := NewStaticResolver()
	r.Set("orders", []string{"a:8083", "b:8083"})
	r.SetHealth("http://a:8083", false)
	r.SetHealth("http://a:8083", true)

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		ep, err := r.Resolve("orders")
		require.NoError(t, err)
		seen[ep] = true
	}
	assert.True(t, seen["http://a:8083"])
	assert.True(t, seen["http://b:8083"])
}

func TestResolveAllUnhealthyFallsBackToFullSet(t *testing.T) {
	r := NewStaticResolver()
	r.Set("orders", []string{"a:8083", "b:8083"})
	r.SetHealth("http://a:8083", false)
	r.SetHealth("http://b:8083", false)

	ep, err := r.Resolve("orders")
	require.NoError(t, err)
	assert.NotEmpty(t, ep)
}

func TestSetResetsHealthMarks(t *testing.T) {
	r := NewStaticResolver()
	r.Set("orders", []string{"a:8083"})
	r.SetHealth("http://a:8083", false)
	r.Set("orders", []string{"a:8083", "b:8083"})

	ep, err := r.Resolve("orders")
	require.NoError(t, err)
	assert.Equal(t, "http://a:8083", ep)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_ORDER_SERVICE", "orders-1:8083, orders-2:8083")

	r := FromEnv()
	ep, err := r.Resolve("order-service")
	require.NoError(t, err)
	assert.Equal(t, "http://orders-1:8083", ep)
}

func TestCheckerMarksDeadEndpointDown(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer live.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close() // nothing listens anymore

	r := NewStaticResolver()
	r.Set("orders", []string{live.URL, dead.URL})

	NewChecker(r, 0).Check(context.Background())

	for i := 0; i < 4; i++ {
		ep, err := r.Resolve("orders")
		require.NoError(t, err)
		assert.Equal(t, live.URL, ep)
	}
}

func TestCheckerMarksFailingHealthzDown(t *testing.T) {
	sick := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer sick.Close()

	r := NewStaticResolver()
	r.Set("orders", []string{sick.URL})

	NewChecker(r, 0).Check(context.Background())

	// the only endpoint is down, so Resolve falls back to the full set
	ep, err := r.Resolve("orders")
	require.NoError(t, err)
	assert.Equal(t, sick.URL, ep)
}
