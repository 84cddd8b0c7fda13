package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: &billing.InvalidInputError{Field: "quantity", Reason: "must not be negative"}, status: http.StatusUnprocessableEntity},
		{err: fmt.Errorf("get invoice: %w", shared.ErrNotFound), status: http.StatusNotFound},
		{err: shared.ErrConflict, status: http.StatusConflict},
		{err: fmt.Errorf("%w: name required", shared.ErrValidation), status: http.StatusBadRequest},
		{err: shared.ErrUpstream, status: http.StatusBadGateway},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		RespondError(rec, tt.err)
		require.Equal(t, tt.status, rec.Code, tt.err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.status, body.Status)
	}
}

func TestStatusForWrappedInputError(t *testing.T) {
	err := fmt.Errorf("items[2]: %w", &billing.InvalidInputError{Field: "rate", Reason: "must not be negative"})
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(err))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}
