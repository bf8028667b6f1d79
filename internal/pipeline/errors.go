package pipeline

import (
	"errors"

	"github.com/ashureev/preppal/internal/provider"
)

// Machine-readable failure reasons carried in error outcomes.
const (
	ReasonMissingCredential = "MissingCredential"
	ReasonProviderError     = "ProviderError"
	ReasonParseError        = "ParseError"
	ReasonInvalidPayload    = "InvalidPayload"
	ReasonInternalError     = "InternalError"
)

// Reason classifies err into one of the failure reasons.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, provider.ErrMissingCredential):
		return ReasonMissingCredential
	case provider.IsProviderError(err):
		return ReasonProviderError
	case provider.IsParseError(err):
		return ReasonParseError
	case errors.Is(err, ErrInvalidPayload):
		return ReasonInvalidPayload
	default:
		return ReasonInternalError
	}
}
