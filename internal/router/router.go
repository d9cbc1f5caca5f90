package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/handler"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check,
// used by load balancers to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated browse endpoints. The role
// catalog changes by migration only, so it sits behind the response
// cache when one is configured.
func RegisterPublic(e *echo.Echo, roles *handler.RoleHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/roles", roles.Catalog, cache)
}

// RegisterAuth wires the full auth surface.
//
// The unauthenticated group under /v1/auth carries the rate limiter:
// signin, signup and the reset flows are the endpoints worth brute
// forcing. Protected endpoints under /v1 verify the bearer token and —
// except for logout — also check the session registry, so a revoked
// token stops working before its exp claim passes. Logout skips the
// registry check on purpose: a double logout should reach the handler
// and be reported as "no active session" rather than die in middleware.
func RegisterAuth(
	e *echo.Echo,
	auth *handler.AuthHandler,
	reset *handler.ResetHandler,
	roles *handler.RoleHandler,
	admin *handler.AdminHandler,
	sessions repository.SessionStore,
	jwtSecret string,
	limiter echo.MiddlewareFunc,
) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/signup", auth.Signup)
	g.POST("/signin", auth.Signin)
	g.POST("/oauth", auth.OAuthLogin)
	g.POST("/reset/request", reset.Request)
	g.POST("/reset/resend", reset.Resend)
	g.POST("/reset/verify", reset.Verify)
	g.POST("/reset/complete", reset.Complete)

	jwtOnly := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	jwtOnly.POST("/logout", auth.Logout)

	protected := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.SessionActive(sessions))
	protected.GET("/me", auth.Me)
	protected.GET("/me/roles", roles.MyRoles)
	protected.POST("/me/role-switch", roles.Switch)
	protected.POST("/me/password", auth.ChangePassword)

	adm := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.SessionActive(sessions),
		middleware.RequireRole("ADMIN"),
	)
	adm.GET("/users/:id/password-changes", admin.PasswordChanges)
}
