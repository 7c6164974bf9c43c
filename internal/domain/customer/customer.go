package customer

import "time"

// Customer identifiers are externally assigned. Only the contact fields
// are mutable after creation.
type Customer struct {
	CustomerID string    `json:"customerId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewCustomer(customerID, name, email, phone string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		CustomerID: customerID,
		Name:       name,
		Email:      email,
		Phone:      phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (c *Customer) UpdateContact(email, phone string) {
	if email != "" {
		c.Email = email
	}
	if phone != "" {
		c.Phone = phone
	}
	c.UpdatedAt = time.Now().UTC()
}
