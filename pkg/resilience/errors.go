package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPError carries an upstream HTTP status for retry classification.
type HTTPError struct {
	StatusCode int
	URL        string
}

// Error returns the formatted error message.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// NewHTTPError creates an HTTPError for a failed response.
func NewHTTPError(statusCode int, url string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, URL: url}
}

// IsThrottle reports whether err is an upstream rate-limit response (HTTP 429).
func IsThrottle(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

// DefaultRetryable classifies errors per the pipeline's retry policy:
// network errors, timeouts, HTTP 429 and 5xx are retryable; other HTTP 4xx
// and context cancellation are not. Unknown errors default to retryable.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// An open circuit fails fast by design; retrying would defeat it.
	if errors.Is(err, ErrOpen) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode
		if code == http.StatusTooManyRequests {
			return true
		}
		if code >= 500 {
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return true
}
