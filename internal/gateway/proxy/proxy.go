// Package proxy forwards matched requests to their resolved upstream,
// applying the circuit breaker and local fallbacks.
package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fathy2028/marketco/internal/gateway/breaker"
	"github.com/fathy2028/marketco/internal/gateway/fallback"
	"github.com/fathy2028/marketco/internal/gateway/middleware"
	"github.com/fathy2028/marketco/internal/gateway/upstream"
	"github.com/fathy2028/marketco/internal/httpx"
	"github.com/fathy2028/marketco/internal/logging"
)

// Forwarder is the terminal handler of the gateway chain. It resolves the
// matched route's upstream, forwards the rewritten request under the
// end-to-end deadline, classifies the outcome for the breaker window, and
// serves the route's fallback when the upstream cannot answer.
type Forwarder struct {
	resolver upstream.Resolver
	breakers *breaker.Group
	client   *http.Client
	timeout  time.Duration
	log      *logrus.Logger
}

func NewForwarder(resolver upstream.Resolver, breakers *breaker.Group, timeout time.Duration) *Forwarder {
	return &Forwarder{
		resolver: resolver,
		breakers: breakers,
		client: &http.Client{
			// redirects are the client's business, not the gateway's
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
		log:     logging.Logger(),
	}
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, forwardPath, ok := middleware.MatchFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusNotFound, "no route", "", "api-gateway")
		return
	}

	br := f.breakers.Get(rt.Breaker())
	record, err := br.Allow()
	if err != nil {
		fallback.ServeFor(w, rt.FallbackPath)
		return
	}

	base, err := f.resolver.Resolve(rt.Upstream)
	if err != nil {
		// the upstream was never reached, but an empty endpoint set is as
		// unavailable as a refused connection
		record(breaker.Failure)
		f.log.WithField("upstream", rt.Upstream).Warn("upstream unresolved")
		fallback.ServeFor(w, rt.FallbackPath)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	out, err := f.buildRequest(ctx, r, base, forwardPath)
	if err != nil {
		record(breaker.Failure)
		fallback.ServeFor(w, rt.FallbackPath)
		return
	}

	start := time.Now()
	resp, err := f.client.Do(out)
	dur := time.Since(start)
	if err != nil {
		// connect failure or deadline overrun, either way a window failure
		record(breaker.Failure)
		f.log.WithFields(logrus.Fields{
			"upstream": rt.Upstream,
			"endpoint": base,
		}).WithError(err).Warn("upstream call failed")
		fallback.ServeFor(w, rt.FallbackPath)
		return
	}
	defer resp.Body.Close()

	record(f.breakers.Classify(resp.StatusCode, dur, nil))

	if resp.StatusCode >= 500 {
		fallback.ServeFor(w, rt.FallbackPath)
		return
	}

	// 2xx/3xx and 4xx are returned verbatim
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (f *Forwarder) buildRequest(ctx context.Context, in *http.Request, base, forwardPath string) (*http.Request, error) {
	target := base + forwardPath
	if in.URL.RawQuery != "" {
		target += "?" + in.URL.RawQuery
	}
	out, err := http.NewRequestWithContext(ctx, in.Method, target, in.Body)
	if err != nil {
		return nil, err
	}
	// carry the length so bodied requests are not re-framed as chunked
	out.ContentLength = in.ContentLength
	copyHeaders(out.Header, in.Header)
	for _, h := range hopByHop {
		out.Header.Del(h)
	}
	if host, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
			host = prior + ", " + host
		}
		out.Header.Set("X-Forwarded-For", host)
	}
	return out, nil
}

var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
