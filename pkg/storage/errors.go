package storage

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrEmptyKey   = errors.New("storage key must not be empty")
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
	// ErrDisabled is returned by New when no account or connection string
	// is configured.
	ErrDisabled = errors.New("storage not configured")
)

var statusByErr = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrEmptyKey, http.StatusBadRequest},
	{ErrInvalidKey, http.StatusBadRequest},
	{ErrDisabled, http.StatusServiceUnavailable},
}

// MapHTTPStatus maps storage errors to HTTP status codes. Unknown errors
// are 500.
func MapHTTPStatus(err error) int {
	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
