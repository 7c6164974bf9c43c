package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-ledger/internal/domain/loan"
	"lending-ledger/internal/pkg/apperrors"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

const pgxmockExpectationsNotMetMsg = "pgxmock expectations not met"

var loanColumnNames = []string{
	"id", "customer_id", "principal", "period_years", "interest_rate",
	"total_interest", "total_amount", "installment_amount", "amount_paid", "remaining_balance",
	"total_installments", "installments_paid", "status", "created_at", "updated_at",
}

func setupLoanRepo(t *testing.T) (context.Context, *LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewLoanRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func testLoan(t *testing.T) *loan.Loan {
	t.Helper()
	l, err := loan.NewLoan("CUST-001", decimal.RequireFromString("100000"), 2, decimal.RequireFromString("10"))
	require.NoError(t, err)
	return l
}

func loanRow(l *loan.Loan) *pgxmock.Rows {
	return pgxmock.NewRows(loanColumnNames).AddRow(
		l.ID, l.CustomerID, l.Principal, l.PeriodYears, l.InterestRate,
		l.TotalInterest, l.TotalAmount, l.InstallmentAmount, l.AmountPaid, l.RemainingBalance,
		l.TotalInstallments, l.InstallmentsPaid, l.Status, l.CreatedAt, l.UpdatedAt,
	)
}

func TestLoanRepositoryCreateLoan(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	l := testLoan(t)

	mockPool.ExpectExec("INSERT INTO loans").
		WithArgs(
			l.ID, l.CustomerID, l.Principal, l.PeriodYears, l.InterestRate,
			l.TotalInterest, l.TotalAmount, l.InstallmentAmount, l.AmountPaid, l.RemainingBalance,
			l.TotalInstallments, l.InstallmentsPaid, l.Status, l.CreatedAt, l.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateLoan(ctx, l)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanRepositoryGetLoanByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		l := testLoan(t)
		mockPool.ExpectQuery("SELECT (.+) FROM loans WHERE id =").
			WithArgs(l.ID).
			WillReturnRows(loanRow(l))

		got, err := repo.GetLoanByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ID)
		assert.True(t, got.TotalAmount.Equal(l.TotalAmount))
		assert.Equal(t, loan.StatusActive, got.Status)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("not found", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		loanID := uuid.New()
		mockPool.ExpectQuery("SELECT (.+) FROM loans WHERE id =").
			WithArgs(loanID).
			WillReturnRows(pgxmock.NewRows(loanColumnNames))

		_, err := repo.GetLoanByID(ctx, loanID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestLoanRepositoryGetPaymentsByLoanID(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	loanID := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "loan_id", "payment_type", "amount", "balance_after", "created_at"}).
		AddRow(uuid.New(), loanID, loan.PaymentTypeEMI, decimal.RequireFromString("5000"), decimal.RequireFromString("115000"), now).
		AddRow(uuid.New(), loanID, loan.PaymentTypeLumpSum, decimal.RequireFromString("15000"), decimal.RequireFromString("100000"), now.Add(time.Hour))

	mockPool.ExpectQuery("SELECT (.+) FROM payments").
		WithArgs(loanID).
		WillReturnRows(rows)

	payments, err := repo.GetPaymentsByLoanID(ctx, loanID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, loan.PaymentTypeEMI, payments[0].Type)
	assert.True(t, payments[1].BalanceAfter.Equal(decimal.RequireFromString("100000")))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanRepositoryUpdateLoanUnderLock(t *testing.T) {
	t.Run("applies payment atomically", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		l := testLoan(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT (.+) FROM loans WHERE id = (.+) FOR UPDATE").
			WithArgs(l.ID).
			WillReturnRows(loanRow(l))
		mockPool.ExpectExec("UPDATE loans").
			WithArgs(l.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("INSERT INTO payments").
			WithArgs(pgxmock.AnyArg(), l.ID, loan.PaymentTypeEMI, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		updated, payment, err := repo.UpdateLoanUnderLock(ctx, l.ID, func(cur *loan.Loan) (*loan.Payment, error) {
			return cur.ApplyPayment(loan.PaymentTypeEMI, cur.InstallmentAmount, time.Now().UTC())
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.InstallmentsPaid)
		assert.True(t, payment.BalanceAfter.Equal(decimal.RequireFromString("115000")))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("rolls back when apply rejects", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		l := testLoan(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT (.+) FROM loans WHERE id = (.+) FOR UPDATE").
			WithArgs(l.ID).
			WillReturnRows(loanRow(l))
		mockPool.ExpectRollback()

		rejection := errors.New("payment rejected")
		_, _, err := repo.UpdateLoanUnderLock(ctx, l.ID, func(*loan.Loan) (*loan.Payment, error) {
			return nil, rejection
		})
		assert.ErrorIs(t, err, rejection)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("missing loan rolls back with not found", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		loanID := uuid.New()
		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT (.+) FROM loans WHERE id = (.+) FOR UPDATE").
			WithArgs(loanID).
			WillReturnRows(pgxmock.NewRows(loanColumnNames))
		mockPool.ExpectRollback()

		_, _, err := repo.UpdateLoanUnderLock(ctx, loanID, func(*loan.Loan) (*loan.Payment, error) {
			t.Fatal("apply must not run for a missing loan")
			return nil, nil
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})
}

func TestLoanRepositoryGetActiveLoanIDsIdleSince(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	cutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)
	idle := uuid.New()
	mockPool.ExpectQuery("SELECT id FROM loans WHERE status =").
		WithArgs(loan.StatusActive, cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(idle))

	ids, err := repo.GetActiveLoanIDsIdleSince(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{idle}, ids)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
