// Package errors maps failures to typed, HTTP-aware errors for the echo layer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontdiff/internal/domain"
)

type ErrorType string

const (
	TypeValidation    ErrorType = "validation"
	TypeUnprocessable ErrorType = "unprocessable"
	TypeNotFound      ErrorType = "not_found"
	TypeConflict      ErrorType = "conflict"
	TypeInternal      ErrorType = "internal"
	TypeExternal      ErrorType = "external"
	TypeTimeout       ErrorType = "timeout"
)

// Error is a categorized failure with a client-safe message.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnprocessable:
		return http.StatusUnprocessableEntity
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	case TypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func ConflictError(message string) *Error { return newError(TypeConflict, message, nil) }

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithContext adds a field that is both logged and returned to the client.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Context: e.Context}
}

// AsStructuredError converts any error into an *Error. Typed errors pass
// through, domain failures are classified, and everything else is internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	var acq *domain.AcquisitionError
	if errors.As(err, &acq) {
		return fromAcquisition(acq)
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return newError(TypeNotFound, "session not found", err)
	case errors.Is(err, domain.ErrFontFileNotFound):
		return newError(TypeNotFound, "font file not found", err)
	case errors.Is(err, domain.ErrUnsupportedView):
		return newError(TypeNotFound, "view not available", err)
	case errors.Is(err, domain.ErrSessionExists):
		return newError(TypeConflict, "session already exists", err)
	case errors.Is(err, domain.ErrSourceUnreachable):
		return newError(TypeExternal, "font source unreachable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(TypeTimeout, "request timed out", err)
	}

	return InternalError("internal server error", err)
}

func fromAcquisition(acq *domain.AcquisitionError) *Error {
	var e *Error
	switch acq.Reason {
	case domain.ReasonMalformedRequest, domain.ReasonEmptyUpload:
		e = newError(TypeValidation, acq.Message, acq)
	case domain.ReasonUnreachable:
		e = newError(TypeExternal, acq.Message, acq)
	default:
		e = newError(TypeUnprocessable, acq.Message, acq)
	}
	return e.WithContext("reason", string(acq.Reason))
}

// WrapHTTPError converts echo's HTTPError so it can be counted by type.
func WrapHTTPError(httpErr *echo.HTTPError) *Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}
	if message == "" {
		message = "internal server error"
	}

	var t ErrorType
	switch {
	case httpErr.Code == http.StatusNotFound || httpErr.Code == http.StatusMethodNotAllowed:
		t = TypeNotFound
	case httpErr.Code == http.StatusConflict:
		t = TypeConflict
	case httpErr.Code == http.StatusBadGateway || httpErr.Code == http.StatusServiceUnavailable:
		t = TypeExternal
	case httpErr.Code == http.StatusGatewayTimeout:
		t = TypeTimeout
	case httpErr.Code >= 400 && httpErr.Code < 500:
		t = TypeValidation
	default:
		t = TypeInternal
	}

	return newError(t, message, httpErr.Internal)
}
