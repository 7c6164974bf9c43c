package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lending-ledger/internal/domain/loan"
)

// Money travels as decimal strings on the wire, formatted with exactly
// two fraction digits on the way out.
type CreateLoanRequest struct {
	CustomerID   string `json:"customerId"`
	Principal    string `json:"principal"`
	PeriodYears  int    `json:"periodYears"`
	InterestRate string `json:"interestRate"`
}

func (r *CreateLoanRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("customerId cannot be empty")
	}
	principal, err := decimal.NewFromString(r.Principal)
	if err != nil {
		return fmt.Errorf("principal must be a decimal number: %q", r.Principal)
	}
	if principal.Exponent() < -2 {
		return fmt.Errorf("principal must have at most two decimal places: %q", r.Principal)
	}
	if r.PeriodYears <= 0 {
		return fmt.Errorf("periodYears must be a positive number")
	}
	if _, err := decimal.NewFromString(r.InterestRate); err != nil {
		return fmt.Errorf("interestRate must be a decimal number: %q", r.InterestRate)
	}
	return nil
}

type PaymentRequest struct {
	PaymentType string `json:"paymentType"`
	Amount      string `json:"amount"`
}

func (r *PaymentRequest) Validate() error {
	switch loan.PaymentType(r.PaymentType) {
	case loan.PaymentTypeEMI, loan.PaymentTypeLumpSum:
	default:
		return fmt.Errorf("paymentType must be %s or %s", loan.PaymentTypeEMI, loan.PaymentTypeLumpSum)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("amount must be a decimal number: %q", r.Amount)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("amount must have at most two decimal places: %q", r.Amount)
	}
	return nil
}

type LoanResponse struct {
	LoanID                string    `json:"loanId"`
	CustomerID            string    `json:"customerId"`
	CustomerName          string    `json:"customerName,omitempty"`
	Principal             string    `json:"principal"`
	PeriodYears           int       `json:"periodYears"`
	InterestRate          string    `json:"interestRate"`
	TotalInterest         string    `json:"totalInterest"`
	TotalAmount           string    `json:"totalAmount"`
	InstallmentAmount     string    `json:"installmentAmount"`
	AmountPaid            string    `json:"amountPaid"`
	RemainingBalance      string    `json:"remainingBalance"`
	TotalInstallments     int       `json:"totalInstallments"`
	InstallmentsPaid      int       `json:"installmentsPaid"`
	InstallmentsRemaining int       `json:"installmentsRemaining"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func NewLoanResponse(l *loan.Loan, customerName string) LoanResponse {
	if l == nil {
		return LoanResponse{}
	}
	return LoanResponse{
		LoanID:                l.ID.String(),
		CustomerID:            l.CustomerID,
		CustomerName:          customerName,
		Principal:             l.Principal.StringFixed(2),
		PeriodYears:           l.PeriodYears,
		InterestRate:          l.InterestRate.StringFixed(2),
		TotalInterest:         l.TotalInterest.StringFixed(2),
		TotalAmount:           l.TotalAmount.StringFixed(2),
		InstallmentAmount:     l.InstallmentAmount.StringFixed(2),
		AmountPaid:            l.AmountPaid.StringFixed(2),
		RemainingBalance:      l.RemainingBalance.StringFixed(2),
		TotalInstallments:     l.TotalInstallments,
		InstallmentsPaid:      l.InstallmentsPaid,
		InstallmentsRemaining: l.InstallmentsRemaining(),
		Status:                string(l.Status),
		CreatedAt:             l.CreatedAt,
		UpdatedAt:             l.UpdatedAt,
	}
}

type PaymentResponse struct {
	PaymentID           string       `json:"paymentId"`
	PaymentType         string       `json:"paymentType"`
	Amount              string       `json:"amount"`
	BalanceAfterPayment string       `json:"balanceAfterPayment"`
	PaymentTimestamp    time.Time    `json:"paymentTimestamp"`
	Loan                LoanResponse `json:"loan"`
}

func NewPaymentResponse(res *loan.PaymentResult) PaymentResponse {
	if res == nil || res.Payment == nil {
		return PaymentResponse{}
	}
	return PaymentResponse{
		PaymentID:           res.Payment.ID.String(),
		PaymentType:         string(res.Payment.Type),
		Amount:              res.Payment.Amount.StringFixed(2),
		BalanceAfterPayment: res.Payment.BalanceAfter.StringFixed(2),
		PaymentTimestamp:    res.Payment.Timestamp,
		Loan:                NewLoanResponse(res.Loan, ""),
	}
}

type LedgerEntryResponse struct {
	PaymentID    string    `json:"paymentId"`
	PaymentType  string    `json:"paymentType"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	Timestamp    time.Time `json:"timestamp"`
}

type LedgerResponse struct {
	Loan          LoanResponse          `json:"loan"`
	Payments      []LedgerEntryResponse `json:"payments"`
	TotalPayments int                   `json:"totalPayments"`
}

func NewLedgerResponse(ledger *loan.Ledger) LedgerResponse {
	if ledger == nil {
		return LedgerResponse{}
	}

	customerName := ""
	if ledger.Customer != nil {
		customerName = ledger.Customer.Name
	}

	entries := make([]LedgerEntryResponse, 0, len(ledger.Payments))
	for _, p := range ledger.Payments {
		entries = append(entries, LedgerEntryResponse{
			PaymentID:    p.ID.String(),
			PaymentType:  string(p.Type),
			Amount:       p.Amount.StringFixed(2),
			BalanceAfter: p.BalanceAfter.StringFixed(2),
			Timestamp:    p.Timestamp,
		})
	}

	return LedgerResponse{
		Loan:          NewLoanResponse(ledger.Loan, customerName),
		Payments:      entries,
		TotalPayments: len(entries),
	}
}

type OverviewResponse struct {
	Customer       CustomerResponse `json:"customer"`
	Loans          []LoanResponse   `json:"loans"`
	TotalPrincipal string           `json:"totalPrincipal"`
	TotalAmount    string           `json:"totalAmount"`
	TotalPaid      string           `json:"totalPaid"`
	TotalRemaining string           `json:"totalRemaining"`
	TotalLoans     int              `json:"totalLoans"`
	ActiveLoans    int              `json:"activeLoans"`
	CompletedLoans int              `json:"completedLoans"`
	DefaultedLoans int              `json:"defaultedLoans"`
}

func NewOverviewResponse(ov *loan.AccountOverview) OverviewResponse {
	if ov == nil {
		return OverviewResponse{}
	}

	loans := make([]LoanResponse, 0, len(ov.Loans))
	for _, l := range ov.Loans {
		loans = append(loans, NewLoanResponse(l, ""))
	}

	return OverviewResponse{
		Customer:       NewCustomerResponse(ov.Customer),
		Loans:          loans,
		TotalPrincipal: ov.TotalPrincipal.StringFixed(2),
		TotalAmount:    ov.TotalAmount.StringFixed(2),
		TotalPaid:      ov.TotalPaid.StringFixed(2),
		TotalRemaining: ov.TotalRemaining.StringFixed(2),
		TotalLoans:     len(loans),
		ActiveLoans:    ov.ActiveLoans,
		CompletedLoans: ov.CompletedLoans,
		DefaultedLoans: ov.DefaultedLoans,
	}
}

type TokenRequest struct {
	Username string `json:"username"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
