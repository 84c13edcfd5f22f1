package postgres

import (
	"context"
	"database/sql"
	"errors"

	"shuttlepay/internal/domain"
	"shuttlepay/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// AttemptRepository is a PostgreSQL implementation of repository.AttemptRepository.
type AttemptRepository struct {
	q Querier
}

// NewAttemptRepository creates a new PostgreSQL attempt repository.
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{q: db}
}

// NewAttemptRepositoryWithTx creates an attempt repository using a transaction.
func NewAttemptRepositoryWithTx(tx *sql.Tx) *AttemptRepository {
	return &AttemptRepository{q: tx}
}

// Create persists a new payment attempt.
func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (id, reference, payer_id, amount, kind, status, message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var finishedAt sql.NullTime
	if !attempt.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: attempt.FinishedAt, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		attempt.ID,
		attempt.Reference,
		attempt.PayerID,
		attempt.Amount,
		attempt.Kind,
		attempt.Status,
		attempt.Message,
		attempt.StartedAt,
		finishedAt,
	)

	return err
}

// GetByReference retrieves the attempt recorded for a reference.
func (r *AttemptRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT id, reference, payer_id, amount, kind, status, message, started_at, finished_at
		FROM payment_attempts WHERE reference = $1
	`

	return r.scanOne(r.q.QueryRowContext(ctx, query, reference))
}

// UpdateStatus moves an attempt to a new status. Terminal statuses also stamp
// finished_at.
func (r *AttemptRepository) UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, message string) error {
	query := `
		UPDATE payment_attempts
		SET status = $1, message = $2,
		    finished_at = CASE WHEN $1 IN ('VERIFIED', 'FAILED') THEN NOW() ELSE finished_at END
		WHERE id = $3
	`

	result, err := r.q.ExecContext(ctx, query, status, message, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByPayer retrieves a payer's attempt history, newest first.
func (r *AttemptRepository) ListByPayer(ctx context.Context, payerID string) ([]*domain.PaymentAttempt, error) {
	query := `
		SELECT id, reference, payer_id, amount, kind, status, message, started_at, finished_at
		FROM payment_attempts WHERE payer_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, payerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AttemptRepository) scanOne(row *sql.Row) (*domain.PaymentAttempt, error) {
	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return attempt, nil
}

func scanAttempt(row rowScanner) (*domain.PaymentAttempt, error) {
	var attempt domain.PaymentAttempt
	var finishedAt sql.NullTime

	err := row.Scan(
		&attempt.ID,
		&attempt.Reference,
		&attempt.PayerID,
		&attempt.Amount,
		&attempt.Kind,
		&attempt.Status,
		&attempt.Message,
		&attempt.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		attempt.FinishedAt = finishedAt.Time
	}
	return &attempt, nil
}
