package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lending-ledger/internal/api/handler/dto"
	"lending-ledger/internal/domain/customer"
	"lending-ledger/internal/domain/loan"
)

type MockCustomerService struct {
	mock.Mock
}

func (_m *MockCustomerService) CreateCustomer(ctx context.Context, customerID, name, email, phone string) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID, name, email, phone)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) GetCustomer(ctx context.Context, customerID string) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) UpdateContact(ctx context.Context, customerID, email, phone string) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID, email, phone)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func customerRouter(svc customer.CustomerService, loanSvc loan.LoanService) *chi.Mux {
	h := NewCustomerHandler(svc, loanSvc, testLogger)
	r := chi.NewRouter()
	r.Post("/customers", h.CreateCustomer)
	r.Get("/customers/{customerID}", h.GetCustomer)
	r.Put("/customers/{customerID}/contact", h.UpdateContact)
	r.Get("/customers/{customerID}/overview", h.GetAccountOverview)
	return r
}

func TestCustomerHandlerCreateCustomer(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockCustomerService)
		cust := customer.NewCustomer("CUST-001", "John Doe", "john@example.com", "")
		svc.On("CreateCustomer", mock.Anything, "CUST-001", "John Doe", "john@example.com", "").Return(cust, nil)

		body := `{"customerId":"CUST-001","name":"John Doe","email":"john@example.com","phone":""}`
		req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(body))
		rec := httptest.NewRecorder()
		customerRouter(svc, new(MockLoanService)).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.CustomerResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "CUST-001", resp.CustomerID)
		svc.AssertExpectations(t)
	})

	t.Run("duplicate id maps to 409", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("CreateCustomer", mock.Anything, "CUST-001", "John Doe", "john@example.com", "").
			Return(nil, customer.ErrAlreadyExists)

		body := `{"customerId":"CUST-001","name":"John Doe","email":"john@example.com","phone":""}`
		req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(body))
		rec := httptest.NewRecorder()
		customerRouter(svc, new(MockLoanService)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("empty name maps to 400", func(t *testing.T) {
		svc := new(MockCustomerService)
		body := `{"customerId":"CUST-001","name":"","email":"john@example.com","phone":""}`
		req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(body))
		rec := httptest.NewRecorder()
		customerRouter(svc, new(MockLoanService)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCustomerHandlerGetCustomer(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockCustomerService)
		cust := customer.NewCustomer("CUST-001", "John Doe", "john@example.com", "")
		svc.On("GetCustomer", mock.Anything, "CUST-001").Return(cust, nil)

		req := httptest.NewRequest(http.MethodGet, "/customers/CUST-001", nil)
		rec := httptest.NewRecorder()
		customerRouter(svc, new(MockLoanService)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("GetCustomer", mock.Anything, "NOBODY").Return(nil, customer.ErrNotFound)

		req := httptest.NewRequest(http.MethodGet, "/customers/NOBODY", nil)
		rec := httptest.NewRecorder()
		customerRouter(svc, new(MockLoanService)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCustomerHandlerUpdateContact(t *testing.T) {
	svc := new(MockCustomerService)
	cust := customer.NewCustomer("CUST-001", "John Doe", "new@example.com", "")
	svc.On("UpdateContact", mock.Anything, "CUST-001", "new@example.com", "").Return(cust, nil)

	body := `{"email":"new@example.com","phone":""}`
	req := httptest.NewRequest(http.MethodPut, "/customers/CUST-001/contact", strings.NewReader(body))
	rec := httptest.NewRecorder()
	customerRouter(svc, new(MockLoanService)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.CustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "new@example.com", resp.Email)
}

func TestCustomerHandlerGetAccountOverview(t *testing.T) {
	custSvc := new(MockCustomerService)
	loanSvc := new(MockLoanService)

	l, err := loan.NewLoan("CUST-001", decimal.RequireFromString("100000"), 2, decimal.RequireFromString("10"))
	require.NoError(t, err)

	loanSvc.On("GetAccountOverview", mock.Anything, "CUST-001").Return(&loan.AccountOverview{
		Customer:       &customer.Customer{CustomerID: "CUST-001", Name: "John Doe"},
		Loans:          []*loan.Loan{l},
		TotalPrincipal: l.Principal,
		TotalAmount:    l.TotalAmount,
		TotalPaid:      decimal.Zero,
		TotalRemaining: l.TotalAmount,
		ActiveLoans:    1,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/customers/CUST-001/overview", nil)
	rec := httptest.NewRecorder()
	customerRouter(custSvc, loanSvc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.OverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "John Doe", resp.Customer.Name)
	assert.Equal(t, "120000.00", resp.TotalAmount)
	assert.Equal(t, 1, resp.ActiveLoans)
	require.Len(t, resp.Loans, 1)
	assert.Equal(t, "5000.00", resp.Loans[0].InstallmentAmount)
}
