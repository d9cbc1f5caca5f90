package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// Context keys populated by JWTAuth for downstream middleware and
// handlers.
const (
	CtxUserID    = "user_id"    // uint64
	CtxEmail     = "email"      // string
	CtxRole      = "role"       // string, the default (acting) role
	CtxRoles     = "roles"      // []string, full snapshot at issuance
	CtxTokenHash = "token_hash" // string, SHA-256 digest of the bearer token
)

// JWTAuth returns an Echo middleware that validates a Bearer token and
// injects the verified claims into the request context. Verification
// here is purely cryptographic; SessionActive adds the registry check on
// top so a revoked token dies even before its exp claim does.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.VerifyToken(secret, raw)
			if err != nil {
				// expired, forged and garbled tokens all read the same to
				// the client
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxRole, claims.DefaultRole)
			c.Set(CtxRoles, claims.Roles)
			c.Set(CtxTokenHash, utils.HashToken(raw))
			return next(c)
		}
	}
}

// UserID extracts the authenticated user id stored by JWTAuth. The
// second return is false when the middleware did not run.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok
}

// TokenHash extracts the bearer token digest stored by JWTAuth.
func TokenHash(c echo.Context) (string, bool) {
	h, ok := c.Get(CtxTokenHash).(string)
	return h, ok && h != ""
}
