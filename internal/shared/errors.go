package shared

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrNoBackendAvailable means neither the local engine nor a credentialed
	// remote recognizer is usable for the requested session.
	ErrNoBackendAvailable = errors.New("no recognition backend available")
)

// ConfigurationError is fatal and surfaced to the caller before any engine starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// RemoteServiceError carries the provider's status and message for a failed
// remote recognition call. Remote calls are never retried automatically.
type RemoteServiceError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *RemoteServiceError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("remote service error %s (%d): %s", e.Status, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote service error (%d): %s", e.StatusCode, e.Message)
}

// IsNetworkError reports whether err is a transport-level failure, the one
// error class that triggers backend fallback for a live session.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

type APIError struct {
	Code    string `json:"code" example:"invalid_request"`
	Message string `json:"message" example:"Invalid request body"`
	Details any    `json:"details,omitempty"`
}

func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func (e *APIError) ToHTTP(status int) *echo.HTTPError {
	return echo.NewHTTPError(status, e)
}

func BadRequest(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadRequest)
}

func NotFound(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusNotFound)
}

func BadGateway(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusBadGateway)
}

func InternalError(code, message string) *echo.HTTPError {
	return NewAPIError(code, message).ToHTTP(http.StatusInternalServerError)
}
