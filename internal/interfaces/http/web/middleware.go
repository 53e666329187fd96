package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	app "github.com/gappsops/message-recall/internal/application/recall"
)

const userEmailContextKey = "authenticated_user_email"

func currentUserEmail(c echo.Context) string {
	email, _ := c.Get(userEmailContextKey).(string)
	return email
}

// RequireAdmin resolves the caller's identity from the trusted proxy
// header and admits only domain super-admins.
func RequireAdmin(headerName string, auth app.Authorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			email := c.Request().Header.Get(headerName)
			if email == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if err := auth.Authorize(c.Request().Context(), email); err != nil {
				if errors.Is(err, app.ErrNotAuthorized) {
					return echo.NewHTTPError(http.StatusForbidden, "you must be a domain administrator to use this tool")
				}
				return err
			}
			c.Set(userEmailContextKey, email)
			return next(c)
		}
	}
}
