package middleware

import (
	"context"
	"net/http"

	"github.com/fathy2028/marketco/internal/gateway/route"
)

// Middleware represents an HTTP middleware that wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middlewares into one, applied right-to-left.
func Chain(mw ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			h = mw[i](h)
		}
		return h
	}
}

type ctxKey int

const (
	routeKey ctxKey = iota
	forwardPathKey
	subjectKey
)

// WithMatch stores the matched route and rewritten path on the request.
func WithMatch(r *http.Request, rt *route.Route, forwardPath string) *http.Request {
	ctx := context.WithValue(r.Context(), routeKey, rt)
	ctx = context.WithValue(ctx, forwardPathKey, forwardPath)
	return r.WithContext(ctx)
}

// MatchFrom returns the matched route and forward path, if any.
func MatchFrom(ctx context.Context) (*route.Route, string, bool) {
	rt, ok := ctx.Value(routeKey).(*route.Route)
	if !ok {
		return nil, "", false
	}
	path, _ := ctx.Value(forwardPathKey).(string)
	return rt, path, true
}

// WithSubject stores the verified JWT subject on the request.
func WithSubject(r *http.Request, sub string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), subjectKey, sub))
}

// SubjectFrom returns the verified JWT subject, or empty when the request
// was not authenticated.
func SubjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}
