package event

import "time"

type LoanCreatedEvent struct {
	LoanID        string    `json:"loanId"`
	CustomerID    string    `json:"customerId"`
	Principal     string    `json:"principal"`
	TotalAmount   string    `json:"totalAmount"`
	Installments  int       `json:"installments"`
	Timestamp     time.Time `json:"timestamp"`
}

type PaymentAppliedEvent struct {
	PaymentID        string    `json:"paymentId"`
	LoanID           string    `json:"loanId"`
	PaymentType      string    `json:"paymentType"`
	Amount           string    `json:"amount"`
	BalanceAfter     string    `json:"balanceAfter"`
	InstallmentsPaid int       `json:"installmentsPaid"`
	LoanStatus       string    `json:"loanStatus"`
	Timestamp        time.Time `json:"timestamp"`
}

type LoanStatusChangedEvent struct {
	LoanID    string    `json:"loanId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Timestamp time.Time `json:"timestamp"`
}
