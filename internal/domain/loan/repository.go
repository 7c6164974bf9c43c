package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for loans and their payments.
//
// UpdateLoanUnderLock is the atomic read-modify-write primitive the
// payment processor is built on: the implementation must acquire an
// exclusive lock on the loan record, invoke apply with the current
// snapshot, and either commit the updated loan together with the returned
// payment (when non-nil) or persist nothing at all. The lock is released
// on every exit path.
type Repository interface {
	CreateLoan(ctx context.Context, l *Loan) error

	GetLoanByID(ctx context.Context, loanID uuid.UUID) (*Loan, error)

	// GetLoansByCustomerID returns the customer's loans ordered by
	// creation time descending (most recent first).
	GetLoansByCustomerID(ctx context.Context, customerID string) ([]*Loan, error)

	// GetPaymentsByLoanID returns the loan's payment history ordered by
	// timestamp ascending.
	GetPaymentsByLoanID(ctx context.Context, loanID uuid.UUID) ([]*Payment, error)

	UpdateLoanUnderLock(ctx context.Context, loanID uuid.UUID, apply func(*Loan) (*Payment, error)) (*Loan, *Payment, error)

	// GetActiveLoanIDsIdleSince returns IDs of ACTIVE loans whose last
	// mutation predates cutoff.
	GetActiveLoanIDsIdleSince(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}
