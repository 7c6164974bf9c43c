package loan

import (
	"fmt"
	"lending-ledger/internal/pkg/apperrors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusActive    LoanStatus = "ACTIVE"
	StatusCompleted LoanStatus = "COMPLETED"
	StatusDefaulted LoanStatus = "DEFAULTED"
)

// IsTerminal reports whether no further payment may mutate the loan.
func (s LoanStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDefaulted
}

type PaymentType string

const (
	PaymentTypeEMI     PaymentType = "EMI"
	PaymentTypeLumpSum PaymentType = "LUMP_SUM"
)

var (
	hundred = decimal.NewFromInt(100)

	// completionTolerance absorbs residual cents left by per-installment
	// rounding; a balance at or below it closes the loan.
	completionTolerance = decimal.RequireFromString("0.01")
)

type Loan struct {
	ID                uuid.UUID
	CustomerID        string
	Principal         decimal.Decimal
	PeriodYears       int
	InterestRate      decimal.Decimal
	TotalInterest     decimal.Decimal
	TotalAmount       decimal.Decimal
	InstallmentAmount decimal.Decimal
	AmountPaid        decimal.Decimal
	RemainingBalance  decimal.Decimal
	TotalInstallments int
	InstallmentsPaid  int
	Status            LoanStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Payment struct {
	ID           uuid.UUID
	LoanID       uuid.UUID
	Type         PaymentType
	Amount       decimal.Decimal
	Timestamp    time.Time
	BalanceAfter decimal.Decimal
}

// Terms holds the derived fields computed once at origination.
type Terms struct {
	TotalInterest     decimal.Decimal
	TotalAmount       decimal.Decimal
	TotalInstallments int
	InstallmentAmount decimal.Decimal
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateTerms derives the flat simple-interest terms from the
// origination inputs. Rounding is half-up to 2 decimal places at every
// intermediate step; the per-installment amount is therefore not
// guaranteed to sum back to the total amount to the cent.
//
// Inputs must already be validated (P > 0, N > 0, R >= 0).
func CalculateTerms(principal decimal.Decimal, periodYears int, annualRate decimal.Decimal) Terms {
	years := decimal.NewFromInt(int64(periodYears))

	totalInterest := round2(principal.Mul(years).Mul(annualRate).Div(hundred))
	totalAmount := round2(principal.Add(totalInterest))
	totalInstallments := periodYears * 12

	installment := totalAmount
	if totalInstallments > 0 {
		installment = round2(totalAmount.Div(decimal.NewFromInt(int64(totalInstallments))))
	}

	return Terms{
		TotalInterest:     totalInterest,
		TotalAmount:       totalAmount,
		TotalInstallments: totalInstallments,
		InstallmentAmount: installment,
	}
}

// NewLoan validates the origination inputs and builds a loan with its
// derived fields computed exactly once. After creation only payment
// application mutates the running totals.
func NewLoan(customerID string, principal decimal.Decimal, periodYears int, annualRate decimal.Decimal) (*Loan, error) {
	if customerID == "" {
		return nil, apperrors.NewValidationError("customerId", "customer ID cannot be empty")
	}
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive, got %s", apperrors.ErrInvalidAmount, principal.StringFixed(2))
	}
	if periodYears <= 0 {
		return nil, apperrors.NewValidationError("periodYears", fmt.Sprintf("loan period must be positive, got %d", periodYears))
	}
	if annualRate.IsNegative() {
		return nil, apperrors.NewValidationError("interestRate", fmt.Sprintf("interest rate cannot be negative, got %s", annualRate.StringFixed(2)))
	}

	terms := CalculateTerms(principal, periodYears, annualRate)
	now := time.Now().UTC()

	return &Loan{
		ID:                uuid.New(),
		CustomerID:        customerID,
		Principal:         round2(principal),
		PeriodYears:       periodYears,
		InterestRate:      round2(annualRate),
		TotalInterest:     terms.TotalInterest,
		TotalAmount:       terms.TotalAmount,
		InstallmentAmount: terms.InstallmentAmount,
		AmountPaid:        decimal.Zero,
		RemainingBalance:  terms.TotalAmount,
		TotalInstallments: terms.TotalInstallments,
		InstallmentsPaid:  0,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ValidatePayment checks a proposed payment against the current loan
// state. Checks run in order and short-circuit on the first failure.
// Read-only.
func (l *Loan) ValidatePayment(paymentType PaymentType, amount decimal.Decimal) error {
	if l.Status != StatusActive {
		return fmt.Errorf("%w: loan %s has status %s", apperrors.ErrLoanInactive, l.ID, l.Status)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive, got %s", apperrors.ErrInvalidAmount, amount.StringFixed(2))
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: payment amount must have at most two decimal places, got %s", apperrors.ErrInvalidAmount, amount.String())
	}
	if amount.GreaterThan(l.RemainingBalance) {
		return fmt.Errorf("%w: payment amount %s exceeds remaining balance %s",
			apperrors.ErrAmountExceedsBalance, amount.StringFixed(2), l.RemainingBalance.StringFixed(2))
	}
	if paymentType == PaymentTypeEMI {
		if !amount.Equal(l.InstallmentAmount) {
			return fmt.Errorf("%w: EMI payment must be exactly %s, got %s",
				apperrors.ErrEmiAmountMismatch, l.InstallmentAmount.StringFixed(2), amount.StringFixed(2))
		}
		if l.InstallmentsPaid >= l.TotalInstallments {
			return fmt.Errorf("%w: %d of %d installments paid", apperrors.ErrAllInstallmentsPaid, l.InstallmentsPaid, l.TotalInstallments)
		}
	}
	return nil
}

// ApplyPayment validates the payment and, on success, applies it to the
// running totals and returns the immutable payment record carrying the
// post-mutation balance snapshot. On any validation error the loan is
// left untouched.
//
// Callers must hold exclusive mutation rights on the loan (see
// Repository.UpdateLoanUnderLock).
func (l *Loan) ApplyPayment(paymentType PaymentType, amount decimal.Decimal, now time.Time) (*Payment, error) {
	if err := l.ValidatePayment(paymentType, amount); err != nil {
		return nil, err
	}

	l.AmountPaid = round2(l.AmountPaid.Add(amount))
	remaining := round2(l.RemainingBalance.Sub(amount))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	l.RemainingBalance = remaining

	switch paymentType {
	case PaymentTypeEMI:
		l.InstallmentsPaid = min(l.InstallmentsPaid+1, l.TotalInstallments)
	case PaymentTypeLumpSum:
		if l.InstallmentAmount.IsPositive() {
			covered, _ := amount.QuoRem(l.InstallmentAmount, 0)
			l.InstallmentsPaid = min(l.InstallmentsPaid+int(covered.IntPart()), l.TotalInstallments)
		}
	}

	if l.RemainingBalance.LessThanOrEqual(completionTolerance) {
		l.Status = StatusCompleted
		l.RemainingBalance = decimal.Zero
		l.InstallmentsPaid = l.TotalInstallments
	}
	l.UpdatedAt = now

	return &Payment{
		ID:           uuid.New(),
		LoanID:       l.ID,
		Type:         paymentType,
		Amount:       round2(amount),
		Timestamp:    now,
		BalanceAfter: l.RemainingBalance,
	}, nil
}

// MarkDefaulted moves an active loan to the DEFAULTED terminal state.
func (l *Loan) MarkDefaulted(now time.Time) error {
	if l.Status != StatusActive {
		return fmt.Errorf("%w: loan %s has status %s", apperrors.ErrLoanInactive, l.ID, l.Status)
	}
	l.Status = StatusDefaulted
	l.UpdatedAt = now
	return nil
}

func (l *Loan) InstallmentsRemaining() int {
	return max(0, l.TotalInstallments-l.InstallmentsPaid)
}
