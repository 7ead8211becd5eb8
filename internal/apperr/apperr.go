// Package apperr holds the error taxonomy shared by services, stores and
// transports. Callers match with errors.Is against the sentinels.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
	ErrNotification = errors.New("notification failed")
	ErrForbidden    = errors.New("forbidden")
)

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error   { return wrap(ErrNotFound, format, args...) }
func Validation(format string, args ...any) error { return wrap(ErrValidation, format, args...) }
func Conflict(format string, args ...any) error   { return wrap(ErrConflict, format, args...) }
func Forbidden(format string, args ...any) error  { return wrap(ErrForbidden, format, args...) }

// Storage wraps a file-store failure so both the taxonomy and the cause match.
func Storage(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, fmt.Sprintf(format, args...), err)
}

func Notification(info string) error { return wrap(ErrNotification, "%s", info) }

// HTTPStatus maps an error to the status the HTTP layer reports.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrStorage), errors.Is(err, ErrNotification):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
