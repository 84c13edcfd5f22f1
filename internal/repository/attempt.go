package repository

import (
	"context"

	"shuttlepay/internal/domain"
)

// AttemptRepository persists the payment attempt journal. The journal is
// supplemental history; the reconciliation core works without it.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error)
	UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, message string) error
	ListByPayer(ctx context.Context, payerID string) ([]*domain.PaymentAttempt, error)
}
