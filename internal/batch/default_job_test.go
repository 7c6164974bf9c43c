package batch

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-ledger/internal/domain/loan"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func seedLoan(t *testing.T, repo *loan.MemoryRepository, updatedAt time.Time) *loan.Loan {
	t.Helper()
	l, err := loan.NewLoan("CUST-001", decimal.RequireFromString("100000"), 2, decimal.RequireFromString("10"))
	require.NoError(t, err)
	l.UpdatedAt = updatedAt
	require.NoError(t, repo.CreateLoan(context.Background(), l))
	return l
}

func TestMarkDefaultedJob(t *testing.T) {
	ctx := context.Background()
	idleAfter := 90 * 24 * time.Hour

	t.Run("defaults idle active loans only", func(t *testing.T) {
		repo := loan.NewMemoryRepository()
		stale := seedLoan(t, repo, time.Now().UTC().Add(-idleAfter-time.Hour))
		fresh := seedLoan(t, repo, time.Now().UTC())

		job := NewMarkDefaultedJob(repo, nil, idleAfter, testLogger)
		require.NoError(t, job.Run(ctx))

		got, err := repo.GetLoanByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusDefaulted, got.Status)

		got, err = repo.GetLoanByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusActive, got.Status)
	})

	t.Run("terminal loans are left alone", func(t *testing.T) {
		repo := loan.NewMemoryRepository()
		l := seedLoan(t, repo, time.Now().UTC().Add(-idleAfter-time.Hour))

		// Pay off the loan before the job runs.
		_, _, err := repo.UpdateLoanUnderLock(ctx, l.ID, func(cur *loan.Loan) (*loan.Payment, error) {
			return cur.ApplyPayment(loan.PaymentTypeLumpSum, cur.RemainingBalance, time.Now().UTC())
		})
		require.NoError(t, err)

		job := NewMarkDefaultedJob(repo, nil, idleAfter, testLogger)
		require.NoError(t, job.Run(ctx))

		got, err := repo.GetLoanByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusCompleted, got.Status)
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		repo := loan.NewMemoryRepository()
		seedLoan(t, repo, time.Now().UTC().Add(-idleAfter-time.Hour))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		job := NewMarkDefaultedJob(repo, nil, idleAfter, testLogger)
		assert.ErrorIs(t, job.Run(cancelled), context.Canceled)
	})
}
