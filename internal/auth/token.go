package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TOKEN INSPECTION, CLIENT SIDE:
// The primary token is opaque to this module — the backend signs and
// verifies it, we only carry it. But when the backend issues JWTs (the
// dashboard backend does), the expiry claim is readable without the
// signing secret, and it is useful twice: the refresher probe asks "is
// this token about to lapse?", and the login log line reports when the
// session will end. ParseUnverified is deliberate: we are reading a
// token we were just handed over TLS, not authenticating one.

// TokenExpiry returns the expiry time embedded in token, if token is a
// JWT carrying an exp claim. ok=false for opaque tokens, malformed
// JWTs, or JWTs without an expiry — callers must treat that as "expiry
// unknown", never as "expired".
func TokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpiresWithin reports whether token is known to expire within d.
// Unknown expiry reports false — the refresher must not churn on opaque
// tokens.
func TokenExpiresWithin(token string, d time.Duration) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return time.Until(exp) < d
}
