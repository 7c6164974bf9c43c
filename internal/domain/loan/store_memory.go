package loan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lending-ledger/internal/pkg/apperrors"
)

// MemoryRepository is a map-backed Repository honoring the same
// exclusive-lock contract as the Postgres implementation. Intended for
// tests and local development.
type MemoryRepository struct {
	mu        sync.RWMutex
	loans     map[uuid.UUID]*Loan
	payments  map[uuid.UUID][]*Payment
	loanLocks map[uuid.UUID]*sync.Mutex
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		loans:     make(map[uuid.UUID]*Loan),
		payments:  make(map[uuid.UUID][]*Payment),
		loanLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func cloneLoan(l *Loan) *Loan {
	c := *l
	return &c
}

func (r *MemoryRepository) CreateLoan(_ context.Context, l *Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.loans[l.ID]; exists {
		return apperrors.ErrAlreadyExists
	}
	r.loans[l.ID] = cloneLoan(l)
	r.loanLocks[l.ID] = &sync.Mutex{}
	return nil
}

func (r *MemoryRepository) GetLoanByID(_ context.Context, loanID uuid.UUID) (*Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loans[loanID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneLoan(l), nil
}

func (r *MemoryRepository) GetLoansByCustomerID(_ context.Context, customerID string) ([]*Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Loan
	for _, l := range r.loans {
		if l.CustomerID == customerID {
			out = append(out, cloneLoan(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) GetPaymentsByLoanID(_ context.Context, loanID uuid.UUID) ([]*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.loans[loanID]; !ok {
		return nil, apperrors.ErrNotFound
	}
	history := r.payments[loanID]
	out := make([]*Payment, len(history))
	for i, p := range history {
		c := *p
		out[i] = &c
	}
	return out, nil
}

func (r *MemoryRepository) UpdateLoanUnderLock(ctx context.Context, loanID uuid.UUID, apply func(*Loan) (*Payment, error)) (*Loan, *Payment, error) {
	r.mu.RLock()
	lock, ok := r.loanLocks[loanID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, apperrors.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	r.mu.RLock()
	current := cloneLoan(r.loans[loanID])
	r.mu.RUnlock()

	payment, err := apply(current)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	r.loans[loanID] = cloneLoan(current)
	if payment != nil {
		c := *payment
		r.payments[loanID] = append(r.payments[loanID], &c)
	}
	r.mu.Unlock()

	return current, payment, nil
}

func (r *MemoryRepository) GetActiveLoanIDsIdleSince(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for id, l := range r.loans {
		if l.Status == StatusActive && l.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
