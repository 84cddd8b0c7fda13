package shared

import (
	"errors"

	"github.com/invoicedesk/invoicedesk/internal/billing"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the backend rejected a write because of a conflicting state.
	ErrConflict = errors.New("conflict")
	// ErrUpstream indicates the invoicing backend failed or returned garbage.
	ErrUpstream = errors.New("upstream unavailable")
)

// UserSafeMessage converts an error into text that can be shown on a page.
func UserSafeMessage(err error) string {
	var inputErr *billing.InvalidInputError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return inputErr.Field + " " + inputErr.Reason
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrConflict):
		return "The record was changed elsewhere. Reload and try again."
	case errors.Is(err, ErrUpstream):
		return "The invoicing service is unavailable. Please try again shortly."
	default:
		return "Something went wrong. Please try again."
	}
}
