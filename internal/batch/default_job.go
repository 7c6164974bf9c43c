package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lending-ledger/internal/domain/loan"
	"lending-ledger/internal/event"
	"lending-ledger/internal/infrastructure/monitoring"
	"lending-ledger/internal/pkg/apperrors"
)

// MarkDefaultedJob moves ACTIVE loans with no payment activity since the
// configured cutoff to the DEFAULTED terminal state. Each loan is
// re-checked and updated under the same exclusive lock the payment path
// uses, so a payment racing the job wins or loses cleanly, never both.
type MarkDefaultedJob struct {
	repo      loan.Repository
	publisher event.EventPublisher
	idleAfter time.Duration
	logger    *slog.Logger
}

func NewMarkDefaultedJob(repo loan.Repository, publisher event.EventPublisher, idleAfter time.Duration, logger *slog.Logger) *MarkDefaultedJob {
	if repo == nil || logger == nil {
		panic("MarkDefaultedJob dependencies cannot be nil")
	}
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &MarkDefaultedJob{
		repo:      repo,
		publisher: publisher,
		idleAfter: idleAfter,
		logger:    logger.With("job", "MarkDefaulted"),
	}
}

func (j *MarkDefaultedJob) Run(ctx context.Context) error {
	startTime := time.Now()
	cutoff := startTime.Add(-j.idleAfter)
	j.logger.InfoContext(ctx, "Starting loan default job.", slog.Time("cutoff", cutoff))

	ids, err := j.repo.GetActiveLoanIDsIdleSince(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get idle active loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to list idle loans: %w", err)
	}

	var defaulted, skipped, failed int
	for _, id := range ids {
		if ctxErr := ctx.Err(); ctxErr != nil {
			j.logger.WarnContext(ctx, "Default job cancelled mid-run.", slog.Any("error", ctxErr))
			return ctxErr
		}
		if markErr := j.markLoan(ctx, id); markErr != nil {
			if errors.Is(markErr, apperrors.ErrLoanInactive) || errors.Is(markErr, apperrors.ErrNotFound) {
				skipped++
				continue
			}
			j.logger.ErrorContext(ctx, "Failed to default loan", slog.String("loanID", id.String()), slog.Any("error", markErr))
			failed++
			continue
		}
		defaulted++
	}

	j.logger.InfoContext(ctx, "Loan default job finished.",
		slog.Int("candidates", len(ids)),
		slog.Int("defaulted", defaulted),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(startTime)))
	return nil
}

func (j *MarkDefaultedJob) markLoan(ctx context.Context, loanID uuid.UUID) error {
	updated, _, err := j.repo.UpdateLoanUnderLock(ctx, loanID, func(l *loan.Loan) (*loan.Payment, error) {
		// Status may have changed between listing and locking.
		return nil, l.MarkDefaulted(time.Now().UTC())
	})
	if err != nil {
		return err
	}

	monitoring.RecordLoanDefaulted()
	if pubErr := j.publisher.PublishLoanStatusChanged(ctx, event.LoanStatusChangedEvent{
		LoanID:    loanID.String(),
		OldStatus: string(loan.StatusActive),
		NewStatus: string(updated.Status),
		Timestamp: updated.UpdatedAt,
	}); pubErr != nil {
		j.logger.ErrorContext(ctx, "Loan defaulted, but failed to publish status event", slog.Any("error", pubErr))
	}
	return nil
}
