package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when asked to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrMissingAPIKey is returned when a provider is used without credentials.
	ErrMissingAPIKey = errors.New("api key is not configured")
	// ErrRateLimited is returned when a provider rejects a request because of rate limits.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidVoice is returned when the requested voice does not exist.
	ErrInvalidVoice = errors.New("invalid or unsupported voice")
)

// APIError is a non-2xx answer from one of the meet-assistant backends.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Message)
}

// SynthesisError describes a failure of a speech synthesis provider.
type SynthesisError struct {
	Provider string
	// StatusCode is the provider's HTTP status, zero when the request never got an answer.
	StatusCode int
	Message    string
	Cause      error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}
