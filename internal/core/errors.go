package core

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a remote call failure surfaced after the client has exhausted
// its own retry policy. 4xx codes are never retried by callers; 429 and 5xx
// are retried inside the client before this error ever escapes.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote API error: %s", e.Message)
}

// Retryable reports whether the underlying failure was transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsAPIError unwraps err into an *APIError if one is present in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// LoadError records a local file that could not be read. Load failures are
// collected per batch and never abort a scan.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
