package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("principal", "must be positive")

	assert.True(t, errors.Is(err, ErrValidation))

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "principal", vErr.Field)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestWrapDatabaseError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDatabaseError(cause, "failed to persist payment")

	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "DB_ERROR")
}

func TestIsStateConflict(t *testing.T) {
	for _, sentinel := range []error{ErrLoanInactive, ErrAmountExceedsBalance, ErrEmiAmountMismatch, ErrAllInstallmentsPaid} {
		wrapped := fmt.Errorf("%w: details", sentinel)
		assert.True(t, IsStateConflict(wrapped), sentinel.Error())
	}

	assert.False(t, IsStateConflict(ErrNotFound))
	assert.False(t, IsStateConflict(ErrInvalidAmount))
	assert.False(t, IsStateConflict(nil))
}
