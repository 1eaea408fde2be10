package adapter

import (
	"errors"
	"fmt"
	"time"
)

// ErrAdapter is matched by every error defined in this package.
var ErrAdapter = errors.New("adapter error")

// AuthError reports rejected credentials.
type AuthError struct {
	Provider Provider
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

func (e *AuthError) Is(target error) bool { return target == ErrAdapter }

// RateLimitedError reports throttling by the provider.
type RateLimitedError struct {
	Provider   Provider
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %d ms", e.Provider, e.RetryAfter.Milliseconds())
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrAdapter }

// RequestError reports a failed request, including transport failures.
type RequestError struct {
	Provider Provider
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrAdapter }

// InvalidResponseError reports a response that could not be interpreted.
type InvalidResponseError struct {
	Provider Provider
	Message  string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: provider returned invalid response: %s", e.Provider, e.Message)
}

func (e *InvalidResponseError) Is(target error) bool { return target == ErrAdapter }
