package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tjmcgrath/reelbase/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// requireAuth is the admission middleware built by RequireAuth; it is passed
// in so the gateway can share one instance across plugins.
//
// The credential endpoints are rate-limited per IP to blunt brute-force and
// credential stuffing: 10 attempts per minute for login, 5 for register.
// The per-identifier lockout in the service layer is enforced on top.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAuth echo.MiddlewareFunc) {
	g := e.Group("/api/auth")

	// Public routes -- no token required.
	g.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/refresh", h.Refresh, middleware.RateLimit(30, time.Minute))
	g.POST("/logout", h.Logout)
	g.GET("/check/username", h.CheckUsername)
	g.GET("/check/email", h.CheckEmail)

	// Requires a valid access token.
	g.GET("/me", h.Me, requireAuth)
}
