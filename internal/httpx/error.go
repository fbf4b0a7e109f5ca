package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError represents a non-2xx reply from the grid proxy.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("http error: %s %s: status=%d body=%s", e.Method, e.URL, e.StatusCode, body)
}

// Retryable reports whether the error should be considered transient.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return isRetryableStatus(e.StatusCode)
}

// StatusCode extracts the upstream status from err, or 0 when err does not
// wrap an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		(code >= 500 && code <= 599)
}
