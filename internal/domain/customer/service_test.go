package customer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lending-ledger/internal/pkg/apperrors"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Create(ctx context.Context, cust *Customer) error {
	ret := _m.Called(ctx, cust)
	return ret.Error(0)
}

func (_m *MockCustomerRepository) Update(ctx context.Context, cust *Customer) error {
	ret := _m.Called(ctx, cust)
	return ret.Error(0)
}

func (_m *MockCustomerRepository) FindByID(ctx context.Context, customerID string) (*Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}
	return r0, ret.Error(1)
}

func setupService(t *testing.T) (context.Context, CustomerService, *MockCustomerRepository) {
	t.Helper()
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo, logger)
	return context.Background(), svc, repo
}

func TestCreateCustomer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctx, svc, repo := setupService(t)
		repo.On("Create", ctx, mock.AnythingOfType("*customer.Customer")).Return(nil)

		cust, err := svc.CreateCustomer(ctx, "CUST-001", "John Doe", "john@example.com", "+62-555-0100")
		require.NoError(t, err)
		assert.Equal(t, "CUST-001", cust.CustomerID)
		assert.Equal(t, "John Doe", cust.Name)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate id", func(t *testing.T) {
		ctx, svc, repo := setupService(t)
		repo.On("Create", ctx, mock.AnythingOfType("*customer.Customer")).Return(ErrAlreadyExists)

		_, err := svc.CreateCustomer(ctx, "CUST-001", "John Doe", "john@example.com", "")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		ctx, svc, _ := setupService(t)
		_, err := svc.CreateCustomer(ctx, "CUST-001", "  ", "john@example.com", "")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		ctx, svc, _ := setupService(t)
		_, err := svc.CreateCustomer(ctx, "CUST-001", "John Doe", "not-an-email", "")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestGetCustomer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctx, svc, repo := setupService(t)
		repo.On("FindByID", ctx, "CUST-001").Return(&Customer{CustomerID: "CUST-001", Name: "John Doe"}, nil)

		cust, err := svc.GetCustomer(ctx, "CUST-001")
		require.NoError(t, err)
		assert.Equal(t, "John Doe", cust.Name)
	})

	t.Run("not found", func(t *testing.T) {
		ctx, svc, repo := setupService(t)
		repo.On("FindByID", ctx, "NOBODY").Return(nil, ErrNotFound)

		_, err := svc.GetCustomer(ctx, "NOBODY")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateContact(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctx, svc, repo := setupService(t)
		existing := &Customer{CustomerID: "CUST-001", Name: "John Doe", Email: "old@example.com"}
		repo.On("FindByID", ctx, "CUST-001").Return(existing, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*customer.Customer")).Return(nil)

		updated, err := svc.UpdateContact(ctx, "CUST-001", "new@example.com", "")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", updated.Email)
		repo.AssertExpectations(t)
	})

	t.Run("rejects empty update", func(t *testing.T) {
		ctx, svc, _ := setupService(t)
		_, err := svc.UpdateContact(ctx, "CUST-001", "", "  ")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("not found", func(t *testing.T) {
		ctx, svc, repo := setupService(t)
		repo.On("FindByID", ctx, "NOBODY").Return(nil, ErrNotFound)

		_, err := svc.UpdateContact(ctx, "NOBODY", "new@example.com", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
