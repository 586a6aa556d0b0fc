package strava

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-200 response from the Strava API or token endpoint
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("strava API error (status %d): %s", e.StatusCode, e.Body)
}

func statusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from Strava
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from Strava
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 from Strava
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsTooManyRequests reports whether err is a 429 from Strava
func IsTooManyRequests(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}
