package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lending-ledger/internal/domain/customer"
	"lending-ledger/internal/pkg/apperrors"
)

const uniqueViolationCode = "23505"

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Create(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	sql := `
        INSERT INTO customers (id, name, email, phone, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, sql, cust.CustomerID, cust.Name, cust.Email, cust.Phone, cust.CreatedAt, cust.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			r.logger.WarnContext(ctx, "Customer ID already exists", "customer_id", cust.CustomerID)
			return customer.ErrAlreadyExists
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", "customer_id", cust.CustomerID, "error", err)
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer created in DB", "customer_id", cust.CustomerID)
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	sql := `
        UPDATE customers
        SET email = $2, phone = $3, updated_at = $4
        WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, sql, cust.CustomerID, cust.Email, cust.Phone, cust.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update customer", "customer_id", cust.CustomerID, "error", err)
		return fmt.Errorf("%w: failed to update customer: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Customer not found for update", "customer_id", cust.CustomerID)
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (*customer.Customer, error) {
	query := `
        SELECT id, name, email, phone, created_at, updated_at
        FROM customers
        WHERE id = $1`

	var cust customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&cust.CustomerID, &cust.Name, &cust.Email, &cust.Phone, &cust.CreatedAt, &cust.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf("%w: failed to get customer: %w", apperrors.ErrDatabase, err)
	}
	return &cust, nil
}
