package rates

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/pkg/repository"
)

// Domain errors for rate table operations.
var (
	ErrNotFound       = errors.New("no rate for classification code")
	ErrInvalidCode    = errors.New("classification code must be 4 to 8 digits")
	ErrInvalidEntries = errors.New("invalid rate entries")
	ErrNoDatabase     = errors.New("rate database source not configured")
	ErrNoBlobSource   = errors.New("rate blob source not configured")
	ErrNoSourceLoaded = errors.New("no rate source could be loaded")
)

// MapHTTPStatus maps rate errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrInvalidEntries),
		errors.Is(err, repository.ErrConstraint),
		errors.Is(err, hsn.ErrNoRateColumn),
		errors.Is(err, hsn.ErrEmptyTable):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoDatabase), errors.Is(err, ErrNoBlobSource):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
