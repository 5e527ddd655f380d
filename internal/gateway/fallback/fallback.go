// Package fallback serves the locally generated responses returned when an
// upstream is unavailable, plus the gateway's own health fallback.
package fallback

import (
	"net/http"
	"strings"
	"time"

	"github.com/fathy2028/marketco/internal/httpx"
)

// services maps the /fallback/{name} suffix to the service field and the
// error label carried in the response body.
var services = map[string]struct {
	service string
	label   string
}{
	"auth":     {"auth-service", "Authentication"},
	"products": {"product-service", "Product"},
	"orders":   {"order-service", "Order"},
	"cart":     {"cart-service", "Cart"},
	"payments": {"payment-service", "Payment"},
}

// Handler serves /fallback/{auth|products|orders|cart|payments} and
// /fallback/health. Mount it at /fallback/.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/fallback/")
		if name == "health" {
			httpx.JSON(w, http.StatusOK, map[string]any{
				"status":    "UP",
				"timestamp": time.Now().UTC(),
				"service":   "api-gateway",
			})
			return
		}
		svc, ok := services[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serve(w, svc.service, svc.label)
	})
}

// ServeFor renders the fallback body for a route's fallback path, e.g.
// "/fallback/orders". Unknown paths get a label derived from the name.
func ServeFor(w http.ResponseWriter, fallbackPath string) {
	name := strings.TrimPrefix(fallbackPath, "/fallback/")
	if svc, ok := services[name]; ok {
		serve(w, svc.service, svc.label)
		return
	}
	label := strings.TrimSuffix(name, "-service")
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	serve(w, name, label)
}

func serve(w http.ResponseWriter, service, label string) {
	httpx.JSON(w, http.StatusServiceUnavailable, httpx.ErrorBody{
		Error:     label + " service is currently unavailable",
		Message:   "Please try again later",
		Timestamp: time.Now().UTC(),
		Service:   service,
	})
}
