package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mschirtzinger/practicesync/internal/credential"
)

// Errors returned by Client operations.
//
// Transport and payload failures wrap one of these sentinels:
//
//	if errors.Is(err, remote.ErrNetwork) {
//	    // offer a retry
//	}
var (
	// ErrNetwork is returned when the request never produced an HTTP response.
	ErrNetwork = errors.New("network error")

	// ErrDecoding is returned when a response body is not valid JSON for the
	// expected type.
	ErrDecoding = errors.New("decoding error")

	// ErrInvalidResponse is returned when a response decodes but has an
	// unexpected shape, such as a query result without a results array.
	ErrInvalidResponse = errors.New("invalid response")
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d: %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// IsRetryable returns true if the error is likely to succeed on retry:
// transport failures, rate limiting and server errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNetwork) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests || httpErr.Status >= 500
	}

	return false
}

// IsAuthError returns true if the error requires the user to (re)enter a
// credential.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, credential.ErrNoCredential) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden
	}

	return false
}
