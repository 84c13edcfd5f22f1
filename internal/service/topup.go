package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	"shuttlepay/internal/repository"
)

// TopupBackend is the slice of the campus backend used for wallet top-ups.
type TopupBackend interface {
	InitializeTopup(ctx context.Context, token string, amount float64, email string) (*domain.TopupIntent, error)
	VerifyTopup(ctx context.Context, token, reference string) (*backend.VerifyResult, error)
}

// Top-up amount bounds, enforced client-side before any gateway call.
const (
	MinTopupAmount = 100
	MaxTopupAmount = 1_000_000
)

// DefaultRedirectDelay is how long the confirmation stays on screen before
// the one-time dashboard redirect.
const DefaultRedirectDelay = 3 * time.Second

// TopupService manages the external-gateway round trip: initialize, redirect
// out, return with a reference, verify exactly once. It shares the reference
// ledger with the Orchestrator so both flows obey the same per-reference
// idempotency rules.
type TopupService struct {
	backend       TopupBackend
	sessions      *SessionService
	ledger        *ReferenceLedger
	attempts      repository.AttemptRepository // optional journal
	notifier      *NotificationService
	redirectDelay time.Duration
}

// NewTopupService creates a new TopupService. attempts and notifier may be nil.
func NewTopupService(
	topupBackend TopupBackend,
	sessions *SessionService,
	ledger *ReferenceLedger,
	attempts repository.AttemptRepository,
	notifier *NotificationService,
	redirectDelay time.Duration,
) *TopupService {
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}
	return &TopupService{
		backend:       topupBackend,
		sessions:      sessions,
		ledger:        ledger,
		attempts:      attempts,
		notifier:      notifier,
		redirectDelay: redirectDelay,
	}
}

// Initialize requests a gateway session for the chosen amount. Nothing
// durable is kept client-side beyond the returned intent: the browser
// navigates away immediately, so the reference in the return URL is the only
// thread back into this flow.
func (s *TopupService) Initialize(ctx context.Context, amount float64) (*domain.TopupIntent, error) {
	session, ok := s.sessions.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if session.Role != domain.RoleStudent {
		return nil, ErrRoleNotAllowed
	}

	if amount < MinTopupAmount || amount > MaxTopupAmount {
		return nil, ErrInvalidTopupAmount
	}

	return s.backend.InitializeTopup(ctx, session.Token, amount, session.Email)
}

// TopupResult is the outcome of a verified top-up.
type TopupResult struct {
	Reference     string
	NewBalance    float64
	Message       string
	RedirectAfter time.Duration
}

// HandleReturn is the only entry into verification: the gateway redirected
// the browser back with a reference. The ledger mark is taken before the
// verify call resolves and is never reset for the reference, so re-renders,
// back/forward navigation and duplicate returns are client-side no-ops:
// exactly one verify call per reference per process lifetime.
func (s *TopupService) HandleReturn(ctx context.Context, reference string) (*TopupResult, error) {
	if reference == "" {
		return nil, ErrInvalidReference
	}

	if err := s.ledger.Begin(reference); err != nil {
		if errors.Is(err, ErrAttemptInFlight) || errors.Is(err, ErrReferenceFinalized) {
			return nil, ErrAlreadyAttempted
		}
		return nil, err
	}

	return s.verify(ctx, reference)
}

// RetryVerification re-verifies a reference whose previous verification
// failed. This is an explicit user action, never automatic; verified and
// in-flight references always refuse.
func (s *TopupService) RetryVerification(ctx context.Context, reference string) (*TopupResult, error) {
	if reference == "" {
		return nil, ErrInvalidReference
	}

	if state, ok := s.ledger.Status(reference); ok {
		switch {
		case state == domain.AttemptStatusVerified:
			return nil, ErrAlreadyAttempted
		case !state.Terminal():
			return nil, ErrAttemptInFlight
		default:
			s.ledger.ClearFailed(reference)
		}
	}

	if err := s.ledger.Begin(reference); err != nil {
		return nil, ErrAlreadyAttempted
	}

	return s.verify(ctx, reference)
}

// verify runs the Verifying leg. Caller holds the in-flight ledger mark.
func (s *TopupService) verify(ctx context.Context, reference string) (*TopupResult, error) {
	session, ok := s.sessions.Current()
	if !ok {
		// The mark stays released so a login can be followed by a manual
		// retry of the same reference.
		s.ledger.Release(reference)
		return nil, ErrNotAuthenticated
	}

	attempt := &domain.PaymentAttempt{
		ID:        uuid.New().String(),
		Reference: reference,
		PayerID:   session.UserID,
		Kind:      domain.AttemptKindTopup,
		Status:    domain.AttemptStatusSubmitted,
		StartedAt: time.Now(),
	}
	s.journalCreate(ctx, attempt)

	result, err := s.backend.VerifyTopup(ctx, session.Token, reference)
	if err != nil {
		// Terminal failure, surfaced verbatim, no automatic retry.
		s.ledger.Finish(reference, domain.AttemptStatusFailed)
		s.journalStatus(ctx, attempt.ID, domain.AttemptStatusFailed, err.Error())
		if s.notifier != nil {
			_ = s.notifier.NotifyTopupFailed(ctx, session.UserID, reference, err.Error())
		}
		return nil, err
	}

	// Verifying -> Verified: the cached balance becomes exactly the
	// backend-reported value.
	if err := s.sessions.ApplyVerifiedBalance(ctx, result.Wallet.WalletBalance); err != nil {
		log.Printf("topup: balance apply failed after verified reference %s: %v", reference, err)
	}

	s.ledger.Finish(reference, domain.AttemptStatusVerified)
	s.journalStatus(ctx, attempt.ID, domain.AttemptStatusVerified, result.Message)

	if s.notifier != nil {
		_ = s.notifier.NotifyTopupVerified(ctx, session.UserID, reference, result.Wallet.WalletBalance)
	}

	return &TopupResult{
		Reference:     reference,
		NewBalance:    result.Wallet.WalletBalance,
		Message:       result.Message,
		RedirectAfter: s.redirectDelay,
	}, nil
}

func (s *TopupService) journalCreate(ctx context.Context, attempt *domain.PaymentAttempt) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		log.Printf("topup: journal create failed for %s: %v", attempt.Reference, err)
	}
}

func (s *TopupService) journalStatus(ctx context.Context, id string, status domain.AttemptStatus, message string) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.UpdateStatus(ctx, id, status, message); err != nil {
		log.Printf("topup: journal update failed for %s: %v", id, err)
	}
}
