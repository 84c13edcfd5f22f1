package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	internalRedis "shuttlepay/internal/redis"
	"shuttlepay/internal/repository"
)

// PaymentBackend is the slice of the campus backend used to submit
// proximity payments.
type PaymentBackend interface {
	PayWithCode(ctx context.Context, token string, code *domain.PaymentCode) (*backend.PayResult, error)
}

// guardTTL bounds how long a cross-process in-flight mark can outlive a
// crashed agent.
const guardTTL = 2 * time.Minute

// Orchestrator drives a payment attempt from intent to a terminal state:
// balance gate, pre-submission expiry re-check, exactly one submission per
// reference, and balance application only from a verified response.
type Orchestrator struct {
	backend  PaymentBackend
	sessions *SessionService
	ledger   *ReferenceLedger
	guard    internalRedis.GuardStoreInterface // optional cross-process guard
	attempts repository.AttemptRepository      // optional journal
	receipts *ReceiptService
	notifier *NotificationService
}

// NewOrchestrator creates a new Orchestrator. guard, attempts, receipts and
// notifier may be nil.
func NewOrchestrator(
	paymentBackend PaymentBackend,
	sessions *SessionService,
	ledger *ReferenceLedger,
	guard internalRedis.GuardStoreInterface,
	attempts repository.AttemptRepository,
	receipts *ReceiptService,
	notifier *NotificationService,
) *Orchestrator {
	return &Orchestrator{
		backend:  paymentBackend,
		sessions: sessions,
		ledger:   ledger,
		guard:    guard,
		attempts: attempts,
		receipts: receipts,
		notifier: notifier,
	}
}

// PaymentResult is the terminal outcome of a verified proximity payment.
type PaymentResult struct {
	Attempt    *domain.PaymentAttempt
	NewBalance float64
	Receipt    *domain.Receipt
}

// Pay runs one payment attempt for a validated code. Exactly one submission
// call is issued per user action per reference; a duplicate while the first
// is outstanding fails locally with ErrAttemptInFlight.
func (o *Orchestrator) Pay(ctx context.Context, code *domain.PaymentCode) (*PaymentResult, error) {
	session, ok := o.sessions.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if session.Role != domain.RoleStudent {
		return nil, ErrRoleNotAllowed
	}

	if code == nil || code.Reference == "" {
		return nil, ErrInvalidReference
	}

	// Ready -> Checking. One in-flight mark per reference, taken before any
	// check so a racing duplicate click cannot slip past the gate.
	if err := o.ledger.Begin(code.Reference); err != nil {
		return nil, err
	}

	if o.guard != nil {
		acquired, err := o.guard.AcquireReference(ctx, code.Reference, guardTTL)
		if err == nil && !acquired {
			o.ledger.Release(code.Reference)
			return nil, ErrAttemptInFlight
		}
		// A guard store error is not a reason to block payment; the
		// in-process ledger already holds the authoritative mark.
		defer func() { _ = o.guard.ReleaseReference(ctx, code.Reference) }()
	}

	// Balance gate. Blocked is not terminal: the user may top up and press
	// Pay again, so the in-flight mark is released.
	if session.WalletBalance < code.Fare {
		o.ledger.Release(code.Reference)
		gateErr := &InsufficientBalanceError{Required: code.Fare, Available: session.WalletBalance}
		o.notifyBlocked(ctx, session.UserID, gateErr)
		return nil, gateErr
	}

	// Expiry is re-checked immediately before submission: scan-to-pay
	// latency can outlive the validity window. An expired code fails
	// terminally without a network call.
	if code.Expired(time.Now()) {
		o.ledger.Finish(code.Reference, domain.AttemptStatusFailed)
		o.journalTerminal(ctx, newAttempt(code, session.UserID, domain.AttemptStatusFailed, ErrCodeExpired.Error()))
		o.notifyFailed(ctx, session.UserID, code.Fare, ErrCodeExpired.Error())
		return nil, ErrCodeExpired
	}

	// Checking -> Submitting.
	attempt := newAttempt(code, session.UserID, domain.AttemptStatusSubmitted, "")
	o.journalCreate(ctx, attempt)

	result, err := o.backend.PayWithCode(ctx, session.Token, code)
	if err != nil {
		// Terminal either way: business rejections (expired, duplicate
		// redemption, server-side insufficient funds) carry the backend's
		// message verbatim; transport failures are a failed attempt, never
		// an assumed success. No automatic retry.
		o.ledger.Finish(code.Reference, domain.AttemptStatusFailed)
		o.journalStatus(ctx, attempt.ID, domain.AttemptStatusFailed, err.Error())
		o.notifyFailed(ctx, session.UserID, code.Fare, err.Error())
		return nil, err
	}

	// Submitting -> Verified. The cached balance becomes exactly what the
	// backend reported, never a locally computed old balance minus fare.
	if err := o.sessions.ApplyVerifiedBalance(ctx, result.Wallet.WalletBalance); err != nil {
		log.Printf("orchestrator: balance apply failed after verified payment %s: %v", code.Reference, err)
	}

	o.ledger.Finish(code.Reference, domain.AttemptStatusVerified)
	attempt.Status = domain.AttemptStatusVerified
	attempt.FinishedAt = time.Now()
	o.journalStatus(ctx, attempt.ID, domain.AttemptStatusVerified, result.TransactionID)

	var receipt *domain.Receipt
	if o.receipts != nil {
		receipt = o.receipts.GenerateReceipt(ctx, attempt, code, result.Wallet.WalletBalance)
	}

	if o.notifier != nil {
		_ = o.notifier.NotifyPaymentVerified(ctx, session.UserID, code.Fare, result.Wallet.WalletBalance)
	}

	return &PaymentResult{
		Attempt:    attempt,
		NewBalance: result.Wallet.WalletBalance,
		Receipt:    receipt,
	}, nil
}

// GetAttempt looks up a journaled attempt by reference.
func (o *Orchestrator) GetAttempt(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	if reference == "" {
		return nil, ErrInvalidReference
	}
	if o.attempts == nil {
		return nil, repository.ErrNotFound
	}
	return o.attempts.GetByReference(ctx, reference)
}

// ListAttempts returns a payer's journaled attempt history.
func (o *Orchestrator) ListAttempts(ctx context.Context, payerID string) ([]*domain.PaymentAttempt, error) {
	if o.attempts == nil {
		return nil, nil
	}
	return o.attempts.ListByPayer(ctx, payerID)
}

func newAttempt(code *domain.PaymentCode, payerID string, status domain.AttemptStatus, message string) *domain.PaymentAttempt {
	attempt := &domain.PaymentAttempt{
		ID:        uuid.New().String(),
		Reference: code.Reference,
		PayerID:   payerID,
		Amount:    code.Fare,
		Kind:      domain.AttemptKindProximity,
		Status:    status,
		Message:   message,
		StartedAt: time.Now(),
	}
	if status.Terminal() {
		attempt.FinishedAt = attempt.StartedAt
	}
	return attempt
}

// Journal writes are best effort: history must never fail a payment.

func (o *Orchestrator) journalCreate(ctx context.Context, attempt *domain.PaymentAttempt) {
	if o.attempts == nil {
		return
	}
	if err := o.attempts.Create(ctx, attempt); err != nil {
		log.Printf("orchestrator: journal create failed for %s: %v", attempt.Reference, err)
	}
}

func (o *Orchestrator) journalTerminal(ctx context.Context, attempt *domain.PaymentAttempt) {
	o.journalCreate(ctx, attempt)
}

func (o *Orchestrator) journalStatus(ctx context.Context, id string, status domain.AttemptStatus, message string) {
	if o.attempts == nil {
		return
	}
	if err := o.attempts.UpdateStatus(ctx, id, status, message); err != nil {
		log.Printf("orchestrator: journal update failed for %s: %v", id, err)
	}
}

func (o *Orchestrator) notifyBlocked(ctx context.Context, userID string, gateErr *InsufficientBalanceError) {
	if o.notifier == nil {
		return
	}
	_ = o.notifier.NotifyPaymentBlocked(ctx, userID, gateErr.Required, gateErr.Shortfall())
}

func (o *Orchestrator) notifyFailed(ctx context.Context, userID string, amount float64, reason string) {
	if o.notifier == nil {
		return
	}
	_ = o.notifier.NotifyPaymentFailed(ctx, userID, amount, reason)
}
