// Package http posts JSON payloads to webhook endpoints and classifies
// failed responses.
package http

import (
	"errors"
	"fmt"
)

// Failure classes. An *APIError unwraps to at most one of them.
var (
	// ErrRejected means the endpoint refused the payload (400, 413, 422).
	ErrRejected = errors.New("payload rejected")

	// ErrUnauthorized means the credential in the URL or headers was refused (401, 403).
	ErrUnauthorized = errors.New("webhook credential refused")

	// ErrNotFound means the webhook is gone (404, 410).
	ErrNotFound = errors.New("webhook not found")

	// ErrRateLimited means the endpoint is throttling (429).
	ErrRateLimited = errors.New("webhook rate limited")

	// ErrServerError means the endpoint failed on its side (5xx).
	ErrServerError = errors.New("webhook endpoint error")
)

// APIError is a webhook response with a status of 400 or above.
type APIError struct {
	Service    string // Sink name, e.g. "slack"
	StatusCode int
	Message    string // Response body, or the status text if it was empty
	Endpoint   string // Scheme and host only
	RequestID  string
}

func (e *APIError) Error() string {
	at := e.Endpoint
	if e.RequestID != "" {
		at += " [" + e.RequestID + "]"
	}
	return fmt.Sprintf("%s API error (%d) at %s: %s", e.Service, e.StatusCode, at, e.Message)
}

// Unwrap returns the failure class for the status code.
func (e *APIError) Unwrap() error {
	switch code := e.StatusCode; {
	case code == 400, code == 413, code == 422:
		return ErrRejected
	case code == 401, code == 403:
		return ErrUnauthorized
	case code == 404, code == 410:
		return ErrNotFound
	case code == 429:
		return ErrRateLimited
	case code >= 500:
		return ErrServerError
	}
	return nil
}

// IsNotFound reports whether the webhook is gone.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnauthorized reports whether the webhook credential was refused.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsRateLimited reports whether the endpoint is throttling.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsServerError reports whether the endpoint failed on its side.
func IsServerError(err error) bool { return errors.Is(err, ErrServerError) }

// Hint suggests what an operator should check after a delivery failure.
// It returns "" when err carries no failure class.
func Hint(err error) string {
	switch {
	case IsNotFound(err):
		return "the webhook was removed or the URL is mistyped; update webhook_url"
	case IsUnauthorized(err):
		return "the webhook credential was revoked; regenerate it and update webhook_url or webhook_secret"
	case errors.Is(err, ErrRejected):
		return "the endpoint does not accept this payload; check webhook_kind"
	case IsRateLimited(err):
		return "the endpoint is throttling; the next failure will be delivered normally"
	case IsServerError(err):
		return "the endpoint is failing; check the receiving service"
	}
	return ""
}
