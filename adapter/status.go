package adapter

import (
	"net/http"
	"strconv"
	"time"
)

// FromStatus maps an HTTP failure reported by a provider SDK to the error
// taxonomy of this package. header may be nil.
func FromStatus(p Provider, status int, header http.Header, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: p, Message: err.Error()}
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Provider: p, RetryAfter: retryAfter(header)}
	default:
		return &RequestError{Provider: p, Err: err}
	}
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if ms, err := strconv.ParseInt(h.Get("retry-after-ms"), 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if s, err := strconv.ParseInt(h.Get("Retry-After"), 10, 64); err == nil {
		return time.Duration(s) * time.Second
	}
	return 0
}
