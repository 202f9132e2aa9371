package invoices

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/handlers"
)

// Domain errors for invoice operations.
var (
	ErrNotFound            = errors.New("invoice not found")
	ErrDuplicate           = errors.New("invoice already recorded for this seller")
	ErrPersistenceDisabled = errors.New("invoice persistence not configured")
	ErrInvalidID           = errors.New("invalid invoice id")
)

// MapHTTPStatus maps invoice domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrPersistenceDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, invoice.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, formatting.ErrParseFailed):
		return http.StatusBadRequest
	}
	return handlers.Status(err, http.StatusInternalServerError)
}
