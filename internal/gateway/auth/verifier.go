package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier validates HMAC-signed compact JWS tokens against a shared secret.
type Verifier struct {
	key []byte
}

// NewVerifier decodes the base64 secret to raw key bytes. HMAC-SHA keys
// shorter than 32 bytes are rejected outright.
func NewVerifier(base64Secret string) (*Verifier, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode jwt secret: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("jwt secret is %d bytes, need at least 32", len(key))
	}
	return &Verifier{key: key}, nil
}

// Verify parses and validates the token, returning the subject claim.
// Signature, expiry and not-before failures all collapse to ErrInvalidToken;
// the caller responds 401 either way.
func (v *Verifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// publicPrefixes bypass JWT verification entirely. Paths are the forwarded
// form, after the route's prefix segments have been stripped.
var publicPrefixes = []string{
	"/auth/",
	"/products",
	"/actuator",
	"/swagger-ui",
	"/v3/api-docs",
}

// IsPublic reports whether the forwarded path is exempt from authentication.
func IsPublic(path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
