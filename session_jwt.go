package mcp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSessionIssuer mints and verifies stateless session ids for HTTP/SSE
// sessions: a signed token carrying the negotiated protocol version and an
// expiry, so a fleet of server instances can validate each other's session
// ids without a shared store. It is an alternative to the plain
// SessionManager-issued uuid ids for deployments that need session state to
// survive being handled by a different instance than the one that created
// it; the in-process session FSM (session.go) still owns the live session
// object regardless of which id scheme is used.
//
// Trade-off: a session minted this way cannot be revoked before its token
// expires — acceptable for this server's single-process deployment model,
// where RedisSessionManager (session_redis.go) is the documented escape
// hatch if revocation is ever needed.
type JWTSessionIssuer struct {
	secret []byte
	ttl    time.Duration
}

type sessionClaims struct {
	ProtocolVersion string `json:"protocol_version,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTSessionIssuer builds an issuer with the given HMAC secret and token
// lifetime (use DefaultSessionTTL if unsure).
func NewJWTSessionIssuer(secret []byte, ttl time.Duration) *JWTSessionIssuer {
	return &JWTSessionIssuer{secret: secret, ttl: ttl}
}

// DefaultSessionTTL is the default lifetime for a JWT-backed session id.
const DefaultSessionTTL = 30 * time.Minute

// Issue mints a session id carrying protocolVersion and subj (typically the
// in-process Session.ID, so the token merely attests that id's validity
// across instances rather than replacing it).
func (j *JWTSessionIssuer) Issue(subject, protocolVersion string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		ProtocolVersion: protocolVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Verify parses and validates a session id token, returning the subject
// (the in-process session id it attests to) and negotiated protocol
// version.
func (j *JWTSessionIssuer) Verify(token string) (subject, protocolVersion string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return "", "", fmt.Errorf("invalid session token")
	}
	return claims.Subject, claims.ProtocolVersion, nil
}
