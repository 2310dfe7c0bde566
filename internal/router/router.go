package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/handler"
	"github.com/iliyamo/farm-records/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// Authenticated is the middleware chain of every private route: a valid
// access token whose account is still open.
func Authenticated(jwtSecret string, users middleware.UserLookup, log *zap.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireActiveUser(users, log),
	}
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// account endpoints under /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard []echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps it
	g.POST("/logout", a.Logout)                // refresh_token body or bearer header

	me := e.Group("/v1/me", guard...)
	me.GET("", a.Me)
	me.PATCH("", a.UpdateMe)
	me.DELETE("", a.DeleteMe)
}
