package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// tokenKeyLen bounds the token-derived key so arbitrary header junk cannot
// grow the key space without bound.
const tokenKeyLen = 43

// IdentityKey derives the bucket key for a request. A verified subject is
// the strongest identity and wins; an unverified bearer token falls back to
// a bounded prefix of the token; everything else buckets by remote address.
func IdentityKey(r *http.Request, verifiedSub string) string {
	if verifiedSub != "" {
		return "sub:" + verifiedSub
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		tok := h[len("Bearer "):]
		if len(tok) > tokenKeyLen {
			tok = tok[:tokenKeyLen]
		}
		return tok
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
