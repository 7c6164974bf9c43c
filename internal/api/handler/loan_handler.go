package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lending-ledger/internal/api/handler/dto"
	"lending-ledger/internal/domain/customer"
	"lending-ledger/internal/domain/loan"
	"lending-ledger/internal/pkg/apperrors"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, customer.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	case errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, customer.ErrAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case apperrors.IsStateConflict(err), errors.Is(err, apperrors.ErrInvalidAmount):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.As(err, &appErr):
		message = appErr.Error()
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

func getLoanIDFromURL(r *http.Request) (uuid.UUID, error) {
	idStr := chi.URLParam(r, "loanID")
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%w: loanID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid loanID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}

// CreateLoan handles POST /loans.
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	principal, _ := decimal.NewFromString(req.Principal)
	interestRate, _ := decimal.NewFromString(req.InterestRate)

	summary, err := h.service.CreateLoan(r.Context(), req.CustomerID, principal, req.PeriodYears, interestRate)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to create loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewLoanResponse(summary.Loan, summary.CustomerName)
	h.logger.InfoContext(r.Context(), "Loan created successfully", slog.String("loanID", resp.LoanID))
	respondJSON(w, http.StatusCreated, resp)
}

// GetLoan handles GET /loans/{loanID}.
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	summary, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(summary.Loan, summary.CustomerName))
}

// GetLedger handles GET /loans/{loanID}/ledger.
func (h *LoanHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	ledger, err := h.service.GetLedger(r.Context(), loanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get ledger", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLedgerResponse(ledger))
}

// ApplyPayment handles POST /loans/{loanID}/payments.
func (h *LoanHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)

	result, err := h.service.ApplyPayment(r.Context(), loanID, loan.PaymentType(req.PaymentType), amount)
	if err != nil {
		level := slog.LevelWarn
		if !apperrors.IsStateConflict(err) &&
			!errors.Is(err, apperrors.ErrInvalidAmount) &&
			!errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Payment rejected", slog.String("loanID", loanID.String()), slog.Any("error", err))
		respondError(w, err)
		return
	}

	resp := dto.NewPaymentResponse(result)
	h.logger.InfoContext(r.Context(), "Payment applied",
		slog.String("loanID", loanID.String()),
		slog.String("paymentID", resp.PaymentID))
	respondJSON(w, http.StatusCreated, resp)
}
