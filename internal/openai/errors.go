package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrMissingAPIKey is returned by New when no credential is configured.
	ErrMissingAPIKey = errors.New("openai: OPENAI_API_KEY is not set")
	// ErrAuthentication matches provider 401 and 403 responses.
	ErrAuthentication = errors.New("openai: authentication failed")
	// ErrRateLimited matches provider 429 responses.
	ErrRateLimited = errors.New("openai: rate limited")
	// ErrEmptyResponse is returned when a 2xx body carries no usable data.
	ErrEmptyResponse = errors.New("openai: empty response")
)

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai: status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Retryable reports whether err is transient: a rate limit, a 5xx, or a
// network failure. A client timeout is a network failure even though it
// matches context.DeadlineExceeded; post reports the caller's own context
// ending as a bare ctx.Err(), which is never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *transportError
	if errors.As(err, &transportErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// transportError wraps failures from http.Client.Do.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "openai: send request: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

// errorEnvelope is the provider's JSON error body.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
