package movies

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all movie routes on the given Echo instance.
// Every endpoint sits behind the auth plugin's admission middleware. The
// static segments are registered alongside :id; Echo matches them first.
func RegisterRoutes(e *echo.Echo, h *Handler, requireAuth echo.MiddlewareFunc) {
	g := e.Group("/api/movies", requireAuth)

	g.GET("/search", h.Search)
	g.GET("/list", h.List)
	g.GET("/trending", h.Trending)
	g.GET("/genres", h.Genres)
	g.GET("/:id", h.ByID)
}
