package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBuildCancelled    = errors.New("build cancelled")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrMalformedPage     = errors.New("malformed page")
	ErrEmptyCollection   = errors.New("empty collection")
	ErrPageNotFound      = errors.New("page not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrVersionConflict   = errors.New("page version conflict")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is, As and Join are re-exported so callers importing this package under
// the errors name keep access to the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBuildCancelled), errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMalformedPage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
