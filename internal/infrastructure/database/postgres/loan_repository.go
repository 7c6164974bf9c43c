package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"

	"lending-ledger/internal/domain/loan"
	"lending-ledger/internal/infrastructure/monitoring"
	"lending-ledger/internal/pkg/apperrors"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

const loanColumns = `id, customer_id, principal, period_years, interest_rate,
        total_interest, total_amount, installment_amount, amount_paid, remaining_balance,
        total_installments, installments_paid, status, created_at, updated_at`

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.CustomerID, &l.Principal, &l.PeriodYears, &l.InterestRate,
		&l.TotalInterest, &l.TotalAmount, &l.InstallmentAmount, &l.AmountPaid, &l.RemainingBalance,
		&l.TotalInstallments, &l.InstallmentsPaid, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) error {
	sql := `
        INSERT INTO loans (` + loanColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	status := "success"
	startTime := time.Now()
	_, err := r.db.Exec(ctx, sql,
		l.ID, l.CustomerID, l.Principal, l.PeriodYears, l.InterestRate,
		l.TotalInterest, l.TotalAmount, l.InstallmentAmount, l.AmountPaid, l.RemainingBalance,
		l.TotalInstallments, l.InstallmentsPaid, l.Status, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("CreateLoan", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "loan_id", l.ID, "error", err)
		return fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", l.ID)
	return nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	status := "success"
	startTime := time.Now()
	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) GetLoansByCustomerID(ctx context.Context, customerID string) ([]*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by customer", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	var loans []*loan.Loan
	for rows.Next() {
		l, scanErr := scanLoan(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan loan row: %w", apperrors.ErrDatabase, scanErr)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func (r *LoanRepository) GetPaymentsByLoanID(ctx context.Context, loanID uuid.UUID) ([]*loan.Payment, error) {
	query := `
        SELECT id, loan_id, payment_type, amount, balance_after, created_at
        FROM payments
        WHERE loan_id = $1
        ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	var payments []*loan.Payment
	for rows.Next() {
		var p loan.Payment
		if scanErr := rows.Scan(&p.ID, &p.LoanID, &p.Type, &p.Amount, &p.BalanceAfter, &p.Timestamp); scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan payment row: %w", apperrors.ErrDatabase, scanErr)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return payments, nil
}

// UpdateLoanUnderLock implements the exclusive-lock payment protocol: the
// loan row is locked with SELECT ... FOR UPDATE for the duration of the
// transaction, apply computes the next state, and the loan update plus
// the payment insert commit together or not at all. Rollback runs on
// every error path, which releases the row lock.
func (r *LoanRepository) UpdateLoanUnderLock(ctx context.Context, loanID uuid.UUID, apply func(*loan.Loan) (*loan.Payment, error)) (updated *loan.Loan, payment *loan.Payment, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	lockQuery := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	status := "success"
	startTime := time.Now()
	current, err := scanLoan(tx.QueryRow(ctx, lockQuery, loanID))
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("LockLoanForUpdate", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "loan_id", loanID)
			err = apperrors.ErrNotFound
			return nil, nil, err
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan row", "loan_id", loanID, "error", err)
		err = fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		return nil, nil, err
	}

	payment, err = apply(current)
	if err != nil {
		return nil, nil, err
	}

	updateSQL := `
        UPDATE loans
        SET amount_paid = $2, remaining_balance = $3, installments_paid = $4, status = $5, updated_at = $6
        WHERE id = $1`

	_, err = tx.Exec(ctx, updateSQL,
		current.ID, current.AmountPaid, current.RemainingBalance,
		current.InstallmentsPaid, current.Status, current.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", loanID, "error", err)
		err = fmt.Errorf("%w: failed to update loan: %w", apperrors.ErrDatabase, err)
		return nil, nil, err
	}

	if payment != nil {
		insertSQL := `
        INSERT INTO payments (id, loan_id, payment_type, amount, balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

		_, err = tx.Exec(ctx, insertSQL,
			payment.ID, payment.LoanID, payment.Type, payment.Amount, payment.BalanceAfter, payment.Timestamp,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to insert payment", "loan_id", loanID, "error", err)
			err = fmt.Errorf("%w: failed to insert payment: %w", apperrors.ErrDatabase, err)
			return nil, nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "loan_id", loanID, "error", err)
		err = fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		return nil, nil, err
	}

	return current, payment, nil
}

func (r *LoanRepository) GetActiveLoanIDsIdleSince(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM loans WHERE status = $1 AND updated_at < $2`

	rows, err := r.db.Query(ctx, query, loan.StatusActive, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query idle active loans", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan loan id: %w", apperrors.ErrDatabase, scanErr)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return ids, nil
}
