package gateway

import (
	"fmt"
	"strings"

	"github.com/yourorg/stockcast/internal/domain"
)

// NetworkError means the transport failed before a response was received
type NetworkError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError means a response arrived with a non-success status
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error prefers the backend's own text and falls back to the status code
func (e *HTTPError) Error() string {
	if msg := strings.TrimSpace(e.Body); msg != "" {
		return msg
	}
	return fmt.Sprintf("HTTP error, status %d", e.StatusCode)
}

// AuthenticationError is a rejected login
type AuthenticationError struct {
	Err *HTTPError
}

func (e *AuthenticationError) Error() string {
	if msg := strings.TrimSpace(e.Err.Body); msg != "" {
		return msg
	}
	return "Invalid store ID or password"
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RegistrationError is a rejected registration
type RegistrationError struct {
	Err *HTTPError
}

func (e *RegistrationError) Error() string {
	if msg := strings.TrimSpace(e.Err.Body); msg != "" {
		return msg
	}
	return "Registration failed"
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// UploadError is a rejected dataset upload
type UploadError struct {
	Kind domain.DatasetKind
	Err  *HTTPError
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %s", e.Kind, e.Err.Error())
}

func (e *UploadError) Unwrap() error { return e.Err }
