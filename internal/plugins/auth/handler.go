package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tjmcgrath/reelbase/internal/apperror"
	"github.com/tjmcgrath/reelbase/internal/config"
)

// Cookie names. Tokens are delivered both in the JSON body (for clients
// that keep them in memory) and as httpOnly cookies (for browser clients
// that want them out of reach of scripts). Either transport is accepted
// on the way back in.
const (
	accessCookieName  = "token"
	refreshCookieName = "refreshToken"
)

// Handler handles HTTP requests for authentication.
type Handler struct {
	service AuthService
	// secure controls the Secure flag on auth cookies. Off in development
	// so plain-HTTP localhost still works.
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewHandler creates a new auth handler.
func NewHandler(service AuthService, cfg *config.Config) *Handler {
	return &Handler{
		service:    service,
		secure:     cfg.IsProduction(),
		accessTTL:  cfg.Auth.AccessTokenTTL,
		refreshTTL: cfg.Auth.RefreshTokenTTL,
	}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Register(c.Request().Context(), RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Name:            req.Name,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return c.JSON(http.StatusCreated, AuthResponse{
		User:         result.User,
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	result, err := h.service.Login(c.Request().Context(), LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		return err
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return c.JSON(http.StatusOK, AuthResponse{
		User:         result.User,
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	})
}

// Refresh handles POST /api/auth/refresh. The refresh token is read from
// the JSON body first, then from the refreshToken cookie. Only a new
// access token is minted; the refresh token itself is left alone.
func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	// The body is optional here; cookie-only clients send none at all.
	_ = c.Bind(&req)

	token := req.RefreshToken
	if token == "" {
		if cookie, err := c.Cookie(refreshCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return apperror.NewUnauthorized("refresh token required")
	}

	result, err := h.service.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}

	h.setCookie(c, accessCookieName, result.AccessToken, h.accessTTL)
	return c.JSON(http.StatusOK, AuthResponse{
		User:      result.User,
		Token:     result.AccessToken,
		ExpiresIn: result.ExpiresIn,
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so logout is
// purely a client-side affair: both cookies are cleared and the client is
// expected to drop any copies it holds.
func (h *Handler) Logout(c echo.Context) error {
	h.clearCookie(c, accessCookieName)
	h.clearCookie(c, refreshCookieName)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me. RequireAuth runs first, so the user is
// always present in the context here.
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]*User{"user": GetUser(c)})
}

// CheckUsername handles GET /api/auth/check/username?username=...
func (h *Handler) CheckUsername(c echo.Context) error {
	username := c.QueryParam("username")
	if username == "" {
		return apperror.NewBadRequest("username query parameter is required")
	}

	available, err := h.service.UsernameAvailable(c.Request().Context(), username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": available})
}

// CheckEmail handles GET /api/auth/check/email?email=...
func (h *Handler) CheckEmail(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return apperror.NewBadRequest("email query parameter is required")
	}

	available, err := h.service.EmailAvailable(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": available})
}

// --- Cookie helpers ---

func (h *Handler) setAuthCookies(c echo.Context, access, refresh string) {
	h.setCookie(c, accessCookieName, access, h.accessTTL)
	h.setCookie(c, refreshCookieName, refresh, h.refreshTTL)
}

func (h *Handler) setCookie(c echo.Context, name, value string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
