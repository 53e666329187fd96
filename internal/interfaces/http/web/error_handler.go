package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	app "github.com/gappsops/message-recall/internal/application/recall"
	domain "github.com/gappsops/message-recall/internal/domain/recall"
)

// NewHTTPErrorHandler renders every error as the shared error page and
// maps the domain sentinels onto sensible status codes.
func NewHTTPErrorHandler() echo.HTTPErrorHandler {
	log := logrus.WithField("component", "http")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "Something went wrong. Please try again later."

		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			status = http.StatusNotFound
			message = "No such recall task."
		case errors.Is(err, domain.ErrInvalidCursor),
			errors.Is(err, domain.ErrInvalidStateFilter):
			status = http.StatusBadRequest
			message = "Invalid page parameters."
		case errors.Is(err, app.ErrNotAuthorized):
			status = http.StatusForbidden
			message = "You must be a domain administrator to use this tool."
		default:
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
				if text, ok := httpErr.Message.(string); ok {
					message = text
				}
			}
		}

		if status >= http.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Request().URL.Path).Error("request failed")
		}

		renderErr := c.Render(status, "error.html", map[string]any{
			"Base":    pageBase{Title: "Message Recall", UserEmail: currentUserEmail(c)},
			"Message": message,
		})
		if renderErr != nil {
			log.WithError(renderErr).Error("render error page failed")
		}
	}
}
