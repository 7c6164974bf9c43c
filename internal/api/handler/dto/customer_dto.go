package dto

import (
	"fmt"
	"strings"
	"time"

	"lending-ledger/internal/domain/customer"
)

type CreateCustomerRequest struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

func (r *CreateCustomerRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("customerId cannot be empty")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

type UpdateContactRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (r *UpdateContactRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("at least one of email or phone must be provided")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		CustomerID: cust.CustomerID,
		Name:       cust.Name,
		Email:      cust.Email,
		Phone:      cust.Phone,
		CreatedAt:  cust.CreatedAt,
		UpdatedAt:  cust.UpdatedAt,
	}
}
