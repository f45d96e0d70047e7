package errors

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
)

// Recorder counts handled errors by type. A nil Recorder is allowed.
type Recorder interface {
	ObserveError(errType string)
}

// Middleware renders errors returned by handlers as JSON ErrorResponses.
// echo.HTTPErrors are counted and then left to echo's own error handler so
// that status codes set by middleware (body limit, rate limit) survive.
func Middleware(rec Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				observe(rec, WrapHTTPError(httpErr))
				return err
			}

			return render(c, rec, AsStructuredError(err))
		}
	}
}

// HandleError writes err as a JSON error response from inside a handler.
func HandleError(c echo.Context, rec Recorder, err error) error {
	if err == nil {
		return nil
	}
	return render(c, rec, AsStructuredError(err))
}

func render(c echo.Context, rec Recorder, e *Error) error {
	observe(rec, e)
	logError(c, e)
	if c.Response().Committed {
		return nil
	}
	if err := c.JSON(e.HTTPStatus(), e.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func observe(rec Recorder, e *Error) {
	if rec != nil {
		rec.ObserveError(string(e.Type))
	}
}

func logError(c echo.Context, e *Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", e.Type,
		"message", e.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", e.HTTPStatus(),
	}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}

	switch e.Type {
	case TypeValidation, TypeUnprocessable, TypeNotFound:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case TypeConflict, TypeTimeout:
		slog.WarnContext(ctx, "Request failed", append(attrs, "cause", e.Cause)...)
	default:
		slog.ErrorContext(ctx, "Request failed", append(attrs, "cause", e.Cause)...)
	}
}
