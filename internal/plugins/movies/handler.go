package movies

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for movie browsing.
type Handler struct {
	service MovieService
}

// NewHandler creates a new movies handler.
func NewHandler(service MovieService) *Handler {
	return &Handler{service: service}
}

// Search handles GET /api/movies/search?q=...&type=...&page=...
func (h *Handler) Search(c echo.Context) error {
	result, err := h.service.Search(
		c.Request().Context(),
		c.QueryParam("q"),
		c.QueryParam("type"),
		pageParam(c),
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// List handles GET /api/movies/list?genre=...&year=...&type=...&page=...
func (h *Handler) List(c echo.Context) error {
	result, err := h.service.List(
		c.Request().Context(),
		c.QueryParam("genre"),
		c.QueryParam("year"),
		c.QueryParam("type"),
		pageParam(c),
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Trending handles GET /api/movies/trending?page=...
func (h *Handler) Trending(c echo.Context) error {
	result, err := h.service.Trending(c.Request().Context(), pageParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Genres handles GET /api/movies/genres.
func (h *Handler) Genres(c echo.Context) error {
	shelves, err := h.service.Genres(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shelves)
}

// ByID handles GET /api/movies/:id.
func (h *Handler) ByID(c echo.Context) error {
	detail, err := h.service.ByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// pageParam parses the page query parameter, defaulting to 1.
func pageParam(c echo.Context) int {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		return 1
	}
	return page
}
