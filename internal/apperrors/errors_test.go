package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsAndStatus(t *testing.T) {
	cause := context.DeadlineExceeded

	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"validation", Validation("Missing booking details", "userId"), KindValidation, http.StatusBadRequest},
		{"gateway", Gateway("Failed to create checkout session", cause), KindGateway, http.StatusInternalServerError},
		{"persistence", Persistence("Failed to save booking", cause), KindPersistence, http.StatusInternalServerError},
		{"conflict", Conflict("Checkout session belongs to another booking", ErrSessionMismatch), KindConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.True(t, Is(wrapped, tt.kind))
			assert.Equal(t, tt.status, StatusCode(wrapped))
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := Persistence("Failed to save booking", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "persistence error: Failed to save booking")
}

func TestValidationListsFields(t *testing.T) {
	err := Validation("Missing booking details", "userId", "amount")
	assert.Equal(t, "validation error: Missing booking details (userId, amount)", err.Error())
}

func TestUnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
	assert.False(t, Is(errors.New("boom"), KindValidation))
}
