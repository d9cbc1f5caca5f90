package utils // package utils provides helpers for token issuance, hashing and reset codes

import (
	"crypto/sha256" // SHA-256 hashing for session token digests
	"encoding/hex"  // hex encoding of digests
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // jti claim values
)

// Claims is the payload embedded in every issued session token. It is
// derived fresh on each issuance and never persisted; the session row
// only keeps a hash of the serialized token. Roles carries the full role
// snapshot at issuance time and Role names the default (acting) role.
// Consumers must treat the snapshot as stale the moment the default role
// changes — role switching reissues a token for exactly that reason.
type Claims struct {
	UserID      uint64   `json:"user_id"`
	Email       string   `json:"email"`
	Avatar      string   `json:"avatar,omitempty"`
	Roles       []string `json:"roles"`
	DefaultRole string   `json:"role"`
	jwt.RegisteredClaims
}

// SignedToken bundles a serialized JWT with its expiry and the SHA-256
// digest under which the session registry tracks it.
type SignedToken struct {
	Token string    // the serialized JWT string
	Hash  string    // SHA-256 hex digest of Token
	Exp   time.Time // UTC expiration time
}

// Token verification failures, mapped from the jwt/v5 error classes so
// callers can distinguish an expired token from a forged or garbled one.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenMalformed = errors.New("token malformed")
)

// IssueToken builds and signs an HS256 JWT for a user. The claims carry
// the user's identity, avatar and role snapshot plus iat/exp and a
// random jti. TTL is supplied by the caller: signin and signup issue
// day-long tokens, role switching issues the longer role-session
// variant.
func IssueToken(secret string, c Claims, ttl time.Duration) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Hash: HashToken(signed), Exp: exp}, nil
}

// VerifyToken parses and validates a serialized token, returning its
// claims. Verification is purely cryptographic and stateless; the
// session registry adds revocability on top.
func VerifyToken(secret, raw string) (Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything other than HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignature
		}
		return []byte(secret), nil
	})
	switch {
	case err == nil && tok.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrTokenSignature
	default:
		return Claims{}, ErrTokenMalformed
	}
}

// HashToken returns the SHA-256 hex digest of a serialized token.
// Sessions are keyed by this digest so a database leak does not hand out
// usable bearer tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
