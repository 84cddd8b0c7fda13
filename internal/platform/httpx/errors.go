// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// StatusFor picks the HTTP status that matches a domain error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, billing.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var inputErr *billing.InvalidInputError
	status := StatusFor(err)
	switch status {
	case http.StatusUnprocessableEntity:
		detail := err.Error()
		if errors.As(err, &inputErr) {
			detail = inputErr.Error()
		}
		Problem(w, status, "Invalid Input", detail)
	case http.StatusNotFound:
		Problem(w, status, "Not Found", err.Error())
	case http.StatusConflict:
		Problem(w, status, "Conflict", err.Error())
	case http.StatusBadRequest:
		Problem(w, status, "Validation Failed", err.Error())
	case http.StatusBadGateway:
		Problem(w, status, "Upstream Unavailable", shared.UserSafeMessage(err))
	default:
		Problem(w, status, "Internal Error", "")
	}
}
