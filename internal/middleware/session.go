package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// SessionActive returns a middleware that rejects requests whose bearer
// token is no longer the user's live session. Token signatures stay
// valid until exp, so this is where logout, re-login elsewhere and
// password resets actually bite. Must run after JWTAuth.
func SessionActive(sessions repository.SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			hash, ok := TokenHash(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			active, err := sessions.IsActive(ctx, uid, hash)
			if err != nil {
				c.Logger().Errorf("session check failed: %v", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session check failed"})
			}
			if !active {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}
			return next(c)
		}
	}
}
