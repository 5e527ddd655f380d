package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fathy2028/marketco/internal/gateway/auth"
	"github.com/fathy2028/marketco/internal/gateway/ratelimit"
	"github.com/fathy2028/marketco/internal/gateway/route"
	"github.com/fathy2028/marketco/internal/httpx"
	"github.com/fathy2028/marketco/internal/logging"
)

// Recover turns handler panics into 500s instead of tearing down the
// connection goroutine.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Logger().WithField("panic", rec).Error("handler panic")
					httpx.Error(w, http.StatusInternalServerError, "internal error", "", "api-gateway")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request at debug level.
func AccessLog() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logging.Logger().WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("request handled")
		})
	}
}

// MatchRoute resolves the request against the active route table. First
// declared match wins; no match is a 404 that never reaches an upstream.
func MatchRoute(h *route.Holder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt, forwardPath, ok := h.Current().Match(r.URL.Path)
			if !ok {
				httpx.Error(w, http.StatusNotFound, "no route", "no upstream is registered for this path", "api-gateway")
				return
			}
			next.ServeHTTP(w, WithMatch(r, rt, forwardPath))
		})
	}
}

// JWT verifies Bearer tokens on authenticated routes. Public paths bypass
// the verifier; failures respond 401 with an empty body.
func JWT(v *auth.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rt, forwardPath, ok := MatchFrom(r.Context())
			if !ok || !rt.AuthRequired || auth.IsPublic(forwardPath) {
				next.ServeHTTP(w, r)
				return
			}
			tok := auth.BearerToken(r)
			if tok == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			sub, err := v.Verify(tok)
			if err != nil {
				logging.Logger().WithField("path", r.URL.Path).Debug("jwt rejected")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, WithSubject(r, sub))
		})
	}
}

// RateLimit takes one bucket token per request, keyed by caller identity.
// A limiter backend error fails open.
func RateLimit(l ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.IdentityKey(r, SubjectFrom(r.Context()))
			d, err := l.Take(r.Context(), key)
			if err != nil {
				logging.Logger().WithError(err).Warn("rate limiter unavailable, failing open")
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httpx.Error(w, http.StatusTooManyRequests, "rate limit exceeded", "too many requests", "api-gateway")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
