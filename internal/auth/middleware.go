package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	userIDKey    = "auth.user_id"
	userEmailKey = "auth.user_email"
)

// Middleware returns an Echo middleware that requires a valid bearer token
// and stores the authenticated identity on the request context.
func Middleware(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			userID, email, err := tokens.Verify(strings.TrimPrefix(header, prefix))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(userIDKey, userID)
			c.Set(userEmailKey, email)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(userIDKey).(uuid.UUID)
	return id, ok
}

// UserEmail returns the authenticated email stored by Middleware.
func UserEmail(c echo.Context) (string, bool) {
	email, ok := c.Get(userEmailKey).(string)
	return email, ok
}
