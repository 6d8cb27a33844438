package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tjmcgrath/reelbase/internal/apperror"
)

// Context keys for authenticated request data.
const (
	contextKeyUser   = "auth.user"
	contextKeyUserID = "auth.user_id"
)

// RequireAuth returns middleware that rejects requests without a valid
// access token. The token is read from the Authorization header (Bearer
// scheme) first, then from the token cookie. On success the user is
// stored in the request context for handlers downstream.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			user, err := service.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeyUser, user)
			c.Set(contextKeyUserID, user.ID)
			return next(c)
		}
	}
}

// bearerToken extracts the access token from the request. Header wins over
// cookie so API clients can override a stale browser cookie.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok && after != "" {
		return after
	}
	if cookie, err := c.Cookie(accessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// GetUser returns the authenticated user from the context, or nil when the
// request did not pass through RequireAuth.
func GetUser(c echo.Context) *User {
	user, _ := c.Get(contextKeyUser).(*User)
	return user
}

// GetUserID returns the authenticated user's ID from the context.
func GetUserID(c echo.Context) string {
	id, _ := c.Get(contextKeyUserID).(string)
	return id
}
