package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingHome           = errors.New("home location is required")
	ErrInsufficientStops     = errors.New("at least two stops besides home are required")
	ErrEmptyRoute            = errors.New("provider returned no route")
	ErrMalformedGeometry     = errors.New("route geometry is malformed")
	ErrMalformedResponse     = errors.New("provider response has an unrecognized shape")
	ErrInvalidCoordinate     = errors.New("coordinate out of range")
	ErrUnknownStop           = errors.New("unknown stop")
	ErrCalculationInProgress = errors.New("a route calculation is already in progress")
	ErrResponseTooLarge      = errors.New("provider response exceeds size limit")

	// ErrProviderRequest and ErrRateLimited match the typed provider errors via errors.Is
	ErrProviderRequest = errors.New("routing provider request failed")
	ErrRateLimited     = errors.New("routing provider rate limit exceeded")
)

// ProviderRequestError reports a network failure or non-2xx status from a provider
type ProviderRequestError struct {
	Provider   string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *ProviderRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned status %d", ErrProviderRequest, e.Provider, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrProviderRequest, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrProviderRequest, e.Provider)
}

func (e *ProviderRequestError) Unwrap() error { return e.Err }

func (e *ProviderRequestError) Is(target error) bool { return target == ErrProviderRequest }

// RateLimitError reports throttling, either by the provider or by the local limiter
type RateLimitError struct {
	Provider string
	Local    bool
}

func (e *RateLimitError) Error() string {
	if e.Local {
		return fmt.Sprintf("%s: local quota for %s exhausted", ErrRateLimited, e.Provider)
	}
	return fmt.Sprintf("%s: %s", ErrRateLimited, e.Provider)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
