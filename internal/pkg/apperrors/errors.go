package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrLoanInactive = errors.New("loan is not active")

	ErrInvalidAmount = errors.New("invalid amount")

	ErrAmountExceedsBalance = errors.New("amount exceeds remaining balance")

	ErrEmiAmountMismatch = errors.New("EMI amount does not match installment amount")

	ErrAllInstallmentsPaid = errors.New("all installments already paid")

	ErrUnauthorized = errors.New("unauthorized")

	ErrConflict = errors.New("resource conflict")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {

	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}

// IsStateConflict reports whether err means the loan exists but the
// requested operation is inconsistent with its current state. No mutation
// has occurred when this returns true.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrLoanInactive) ||
		errors.Is(err, ErrAmountExceedsBalance) ||
		errors.Is(err, ErrEmiAmountMismatch) ||
		errors.Is(err, ErrAllInstallmentsPaid)
}
