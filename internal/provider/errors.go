// Package provider implements the HTTP clients for the transcription and
// grading providers and the helpers used to read their loosely structured
// replies.
package provider

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned when no API key is configured for a
// provider.
var ErrMissingCredential = errors.New("credential not configured")

// ProviderError reports a non-success HTTP status from a provider.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed: %d - %s", e.Provider, e.Status, e.Body)
}

// ParseError reports a success response that carried nothing usable.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
