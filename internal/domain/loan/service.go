package loan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lending-ledger/internal/domain/customer"
	"lending-ledger/internal/event"
	"lending-ledger/internal/infrastructure/monitoring"
	"lending-ledger/internal/pkg/apperrors"
)

// Cache is an optional read cache for ledger views. A nil Cache means
// every read goes to the repository.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// LoanSummary pairs a loan with the owning customer's display name.
type LoanSummary struct {
	Loan         *Loan
	CustomerName string
}

// PaymentResult is the outcome of a successful payment application: the
// created payment record and the loan's post-payment state.
type PaymentResult struct {
	Payment *Payment
	Loan    *Loan
}

// Ledger is a loan's summary plus its full payment history in
// chronological order. Balance snapshots come from the payment records,
// never recomputed at query time.
type Ledger struct {
	Loan     *Loan              `json:"loan"`
	Customer *customer.Customer `json:"customer"`
	Payments []*Payment         `json:"payments"`
}

// AccountOverview aggregates a customer's loan collection.
type AccountOverview struct {
	Customer       *customer.Customer
	Loans          []*Loan
	TotalPrincipal decimal.Decimal
	TotalAmount    decimal.Decimal
	TotalPaid      decimal.Decimal
	TotalRemaining decimal.Decimal
	ActiveLoans    int
	CompletedLoans int
	DefaultedLoans int
}

type LoanService interface {
	CreateLoan(ctx context.Context, customerID string, principal decimal.Decimal, periodYears int, annualRate decimal.Decimal) (*LoanSummary, error)

	ApplyPayment(ctx context.Context, loanID uuid.UUID, paymentType PaymentType, amount decimal.Decimal) (*PaymentResult, error)

	GetLoan(ctx context.Context, loanID uuid.UUID) (*LoanSummary, error)

	GetLedger(ctx context.Context, loanID uuid.UUID) (*Ledger, error)

	GetAccountOverview(ctx context.Context, customerID string) (*AccountOverview, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	publisher       event.EventPublisher
	cache           Cache
	logger          *slog.Logger
}

var _ LoanService = (*loanServiceImpl)(nil)

func NewLoanService(r Repository, cs customer.CustomerService, pub event.EventPublisher, cache Cache, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	return &loanServiceImpl{
		repo:            r,
		customerService: cs,
		publisher:       pub,
		cache:           cache,
		logger:          logger.With("component", "loanService"),
	}
}

func ledgerCacheKey(loanID uuid.UUID) string {
	return "ledger:" + loanID.String()
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, customerID string, principal decimal.Decimal, periodYears int, annualRate decimal.Decimal) (*LoanSummary, error) {
	s.logger.InfoContext(ctx, "Creating new loan", "customerID", customerID)

	cust, err := s.customerService.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found for loan creation", "customerID", customerID)
			return nil, customer.ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to verify customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	newLoan, err := NewLoan(customerID, principal, periodYears, annualRate)
	if err != nil {
		s.logger.WarnContext(ctx, "Loan origination inputs rejected", slog.Any("error", err))
		return nil, err
	}

	if err := s.repo.CreateLoan(ctx, newLoan); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to persist loan: %v", apperrors.ErrInternalServer, err)
	}
	monitoring.RecordLoanCreated()

	if pubErr := s.publisher.PublishLoanCreated(ctx, event.LoanCreatedEvent{
		LoanID:       newLoan.ID.String(),
		CustomerID:   customerID,
		Principal:    newLoan.Principal.StringFixed(2),
		TotalAmount:  newLoan.TotalAmount.StringFixed(2),
		Installments: newLoan.TotalInstallments,
		Timestamp:    newLoan.CreatedAt,
	}); pubErr != nil {
		s.logger.ErrorContext(ctx, "Loan created, but failed to publish creation event", slog.Any("error", pubErr))
	}

	s.logger.InfoContext(ctx, "Loan created successfully", "loanID", newLoan.ID, "customerID", customerID)
	return &LoanSummary{Loan: newLoan, CustomerName: cust.Name}, nil
}

// ApplyPayment runs the payment protocol: exclusive lock on the loan,
// validate, mutate, persist loan and payment atomically, release. On any
// validation failure nothing is persisted and the specific error kind is
// returned verbatim.
func (s *loanServiceImpl) ApplyPayment(ctx context.Context, loanID uuid.UUID, paymentType PaymentType, amount decimal.Decimal) (result *PaymentResult, err error) {
	s.logger.InfoContext(ctx, "Applying payment",
		"loanID", loanID, "type", paymentType, "amount", amount.StringFixed(2))

	defer func() {
		switch {
		case err == nil:
			monitoring.RecordPayment("success")
		case apperrors.IsStateConflict(err), errors.Is(err, apperrors.ErrInvalidAmount):
			monitoring.RecordPayment("failure_validation")
		case errors.Is(err, apperrors.ErrNotFound):
			monitoring.RecordPayment("failure_not_found")
		default:
			monitoring.RecordPayment("failure_internal")
		}
	}()

	var oldStatus LoanStatus
	updated, payment, err := s.repo.UpdateLoanUnderLock(ctx, loanID, func(l *Loan) (*Payment, error) {
		oldStatus = l.Status
		return l.ApplyPayment(paymentType, amount, time.Now().UTC())
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: loan %s not found", apperrors.ErrNotFound, loanID)
		}
		if apperrors.IsStateConflict(err) || errors.Is(err, apperrors.ErrInvalidAmount) {
			s.logger.WarnContext(ctx, "Payment rejected", "loanID", loanID, slog.Any("error", err))
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Failed to apply payment", "loanID", loanID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to apply payment to loan %s: %v", apperrors.ErrInternalServer, loanID, err)
	}

	s.logger.InfoContext(ctx, "Payment applied",
		"loanID", loanID,
		"paymentID", payment.ID,
		"balanceAfter", payment.BalanceAfter.StringFixed(2),
		"installmentsPaid", updated.InstallmentsPaid,
		"status", updated.Status)

	if s.cache != nil {
		if cacheErr := s.cache.Delete(ctx, ledgerCacheKey(loanID)); cacheErr != nil {
			s.logger.WarnContext(ctx, "Failed to invalidate ledger cache", "loanID", loanID, slog.Any("error", cacheErr))
		}
	}

	if pubErr := s.publisher.PublishPaymentApplied(ctx, event.PaymentAppliedEvent{
		PaymentID:        payment.ID.String(),
		LoanID:           loanID.String(),
		PaymentType:      string(payment.Type),
		Amount:           payment.Amount.StringFixed(2),
		BalanceAfter:     payment.BalanceAfter.StringFixed(2),
		InstallmentsPaid: updated.InstallmentsPaid,
		LoanStatus:       string(updated.Status),
		Timestamp:        payment.Timestamp,
	}); pubErr != nil {
		s.logger.ErrorContext(ctx, "Payment applied, but failed to publish event", slog.Any("error", pubErr))
	}

	if updated.Status != oldStatus {
		if pubErr := s.publisher.PublishLoanStatusChanged(ctx, event.LoanStatusChangedEvent{
			LoanID:    loanID.String(),
			OldStatus: string(oldStatus),
			NewStatus: string(updated.Status),
			Timestamp: updated.UpdatedAt,
		}); pubErr != nil {
			s.logger.ErrorContext(ctx, "Failed to publish loan status change event", slog.Any("error", pubErr))
		}
	}

	return &PaymentResult{Payment: payment, Loan: updated}, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID uuid.UUID) (*LoanSummary, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan %s not found", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("%w: failed to get loan %s: %v", apperrors.ErrInternalServer, loanID, err)
	}

	summary := &LoanSummary{Loan: l}
	cust, custErr := s.customerService.GetCustomer(ctx, l.CustomerID)
	if custErr != nil {
		s.logger.WarnContext(ctx, "Failed to resolve customer name for loan", "loanID", loanID, slog.Any("error", custErr))
	} else {
		summary.CustomerName = cust.Name
	}
	return summary, nil
}

func (s *loanServiceImpl) GetLedger(ctx context.Context, loanID uuid.UUID) (*Ledger, error) {
	key := ledgerCacheKey(loanID)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var cached Ledger
			if unmarshalErr := json.Unmarshal([]byte(raw), &cached); unmarshalErr == nil {
				s.logger.DebugContext(ctx, "Ledger served from cache", "loanID", loanID)
				return &cached, nil
			}
			s.logger.WarnContext(ctx, "Discarding unreadable cached ledger", "loanID", loanID)
		}
	}

	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: loan %s not found", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("%w: failed to get loan %s: %v", apperrors.ErrInternalServer, loanID, err)
	}

	payments, err := s.repo.GetPaymentsByLoanID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get payments for loan %s: %v", apperrors.ErrInternalServer, loanID, err)
	}

	ledger := &Ledger{Loan: l, Payments: payments}
	if cust, custErr := s.customerService.GetCustomer(ctx, l.CustomerID); custErr == nil {
		ledger.Customer = cust
	} else {
		s.logger.WarnContext(ctx, "Failed to resolve customer for ledger", "loanID", loanID, slog.Any("error", custErr))
	}

	if s.cache != nil {
		if raw, marshalErr := json.Marshal(ledger); marshalErr == nil {
			if cacheErr := s.cache.Set(ctx, key, string(raw)); cacheErr != nil {
				s.logger.WarnContext(ctx, "Failed to cache ledger", "loanID", loanID, slog.Any("error", cacheErr))
			}
		}
	}

	return ledger, nil
}

func (s *loanServiceImpl) GetAccountOverview(ctx context.Context, customerID string) (*AccountOverview, error) {
	cust, err := s.customerService.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to get customer %s: %v", apperrors.ErrInternalServer, customerID, err)
	}

	loans, err := s.repo.GetLoansByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get loans for customer %s: %v", apperrors.ErrInternalServer, customerID, err)
	}

	overview := &AccountOverview{
		Customer:       cust,
		Loans:          loans,
		TotalPrincipal: decimal.Zero,
		TotalAmount:    decimal.Zero,
		TotalPaid:      decimal.Zero,
		TotalRemaining: decimal.Zero,
	}
	for _, l := range loans {
		overview.TotalPrincipal = overview.TotalPrincipal.Add(l.Principal)
		overview.TotalAmount = overview.TotalAmount.Add(l.TotalAmount)
		overview.TotalPaid = overview.TotalPaid.Add(l.AmountPaid)
		overview.TotalRemaining = overview.TotalRemaining.Add(l.RemainingBalance)
		switch l.Status {
		case StatusActive:
			overview.ActiveLoans++
		case StatusCompleted:
			overview.CompletedLoans++
		case StatusDefaulted:
			overview.DefaultedLoans++
		}
	}

	return overview, nil
}
