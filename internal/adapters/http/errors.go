package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/siakad/core/internal/domain/entities"
)

var notFound = []error{
	entities.ErrTaskNotFound,
	entities.ErrMessageNotFound,
	entities.ErrCourseNotFound,
	entities.ErrScheduleItemMissing,
	entities.ErrRecipientNotFound,
}

var badRequest = []error{
	entities.ErrTaskTitleRequired,
	entities.ErrMessageTextRequired,
	entities.ErrRecipientRequired,
	entities.ErrCourseNameRequired,
	entities.ErrInvalidReminderTime,
	entities.ErrInvalidDay,
	entities.ErrInvalidTheme,
}

// StatusFor maps an error returned by a handler to the HTTP status and the
// message shown to the client.
func StatusFor(err error) (int, string) {
	var (
		he      *echo.HTTPError
		apiErr  *entities.APIError
		invalid validator.ValidationErrors
	)

	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.As(err, &apiErr):
		code := apiErr.StatusCode
		if code < 400 || code > 599 {
			code = http.StatusBadGateway
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(code)
		}
		return code, msg
	case errors.Is(err, entities.ErrNotLoggedIn):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, entities.ErrTransport):
		return http.StatusBadGateway, "SIAKAD server unreachable"
	}

	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound, err.Error()
		}
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
