package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"lending-ledger/internal/pkg/apperrors"
)

type CustomerService interface {
	CreateCustomer(ctx context.Context, customerID, name, email, phone string) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	UpdateContact(ctx context.Context, customerID, email, phone string) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}
	return &customerService{
		repo:   repo,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) CreateCustomer(ctx context.Context, customerID, name, email, phone string) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to create new customer", slog.String("customerID", customerID))

	customerID = strings.TrimSpace(customerID)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if customerID == "" {
		return nil, apperrors.NewValidationError("customerId", "customer ID cannot be empty")
	}
	if name == "" {
		return nil, apperrors.NewValidationError("name", "customer name cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("email", "customer email is invalid")
	}

	cust := NewCustomer(customerID, name, email, strings.TrimSpace(phone))
	if err := s.repo.Create(ctx, cust); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.logger.WarnContext(ctx, "Customer ID already exists", slog.String("customerID", customerID))
			return nil, ErrAlreadyExists
		}
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully created new customer", slog.String("customerID", customerID))
	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found by repository", slog.String("customerID", customerID))
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	return cust, nil
}

func (s *customerService) UpdateContact(ctx context.Context, customerID, email, phone string) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to update customer contact fields", slog.String("customerID", customerID))

	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, apperrors.NewValidationError("email", "nothing to update: both email and phone are empty")
	}
	if email != "" && !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("email", "customer email is invalid")
	}

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found by repository for update", slog.String("customerID", customerID))
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot find customer %s to update contact: %w", customerID, err)
	}

	cust.UpdateContact(email, phone)
	if err := s.repo.Update(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save updated contact fields", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save contact update for customer %s: %w", customerID, err)
	}

	s.logger.InfoContext(ctx, "Successfully updated customer contact fields", slog.String("customerID", customerID))
	return cust, nil
}
