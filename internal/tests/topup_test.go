package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	"shuttlepay/internal/service"
)

func verifyResult(balance float64, message string) *backend.VerifyResult {
	result := &backend.VerifyResult{Message: message}
	result.Wallet.WalletBalance = balance
	return result
}

func newTopupService(balance float64, topups *MockTopupBackend) (*service.TopupService, *service.SessionService) {
	sessions, _ := newHydratedSession(domain.RoleStudent, balance)
	ledger := service.NewReferenceLedger()
	return service.NewTopupService(topups, sessions, ledger, nil, nil, 0), sessions
}

func TestInitialize_EnforcesAmountBounds(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.Intent = &domain.TopupIntent{Reference: "ref-1", GatewayRedirectURL: "https://gateway.example/pay"}
	svc, _ := newTopupService(500, topups)

	testCases := []struct {
		name   string
		amount float64
		ok     bool
	}{
		{"below minimum", 99, false},
		{"at minimum", 100, true},
		{"at maximum", 1_000_000, true},
		{"above maximum", 1_000_001, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Initialize(context.Background(), tc.amount)
			if tc.ok && err != nil {
				t.Errorf("expected %v to be accepted, got %v", tc.amount, err)
			}
			if !tc.ok && !errors.Is(err, service.ErrInvalidTopupAmount) {
				t.Errorf("expected ErrInvalidTopupAmount for %v, got %v", tc.amount, err)
			}
		})
	}

	// Out-of-range amounts never reach the gateway.
	if n := atomic.LoadInt32(&topups.InitializeCallCount); n != 2 {
		t.Errorf("expected 2 gateway calls for the 2 valid amounts, got %d", n)
	}
}

func TestInitialize_RequiresStudentRole(t *testing.T) {
	topups := NewMockTopupBackend()
	sessions, _ := newHydratedSession(domain.RoleDriver, 0)
	svc := service.NewTopupService(topups, sessions, service.NewReferenceLedger(), nil, nil, 0)

	_, err := svc.Initialize(context.Background(), 500)
	if !errors.Is(err, service.ErrRoleNotAllowed) {
		t.Errorf("expected ErrRoleNotAllowed, got %v", err)
	}
}

func TestHandleReturn_VerifiesExactlyOnce(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyResult = verifyResult(1500, "Payment verified")
	svc, sessions := newTopupService(500, topups)

	result, err := svc.HandleReturn(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	if result.NewBalance != 1500 {
		t.Errorf("expected backend-reported balance 1500, got %v", result.NewBalance)
	}
	session, _ := sessions.Current()
	if session.WalletBalance != 1500 {
		t.Errorf("cached balance must equal the backend-reported value, got %v", session.WalletBalance)
	}

	// Re-renders and duplicate returns are local no-ops.
	for i := 0; i < 3; i++ {
		if _, err := svc.HandleReturn(context.Background(), "ref-1"); !errors.Is(err, service.ErrAlreadyAttempted) {
			t.Fatalf("expected ErrAlreadyAttempted on re-entry %d, got %v", i, err)
		}
	}

	if n := atomic.LoadInt32(&topups.VerifyCallCount); n != 1 {
		t.Errorf("expected exactly one verify call, got %d", n)
	}
}

func TestHandleReturn_ConcurrentDuplicateIsSuppressed(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyResult = verifyResult(1500, "Payment verified")
	topups.Block = make(chan struct{})
	svc, _ := newTopupService(500, topups)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = svc.HandleReturn(context.Background(), "ref-1")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&topups.VerifyCallCount) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first verification never reached the backend")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := svc.HandleReturn(context.Background(), "ref-1"); !errors.Is(err, service.ErrAlreadyAttempted) {
		t.Errorf("expected ErrAlreadyAttempted while verification is outstanding, got %v", err)
	}

	close(topups.Block)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first verification failed: %v", firstErr)
	}
	if n := atomic.LoadInt32(&topups.VerifyCallCount); n != 1 {
		t.Errorf("expected exactly one verify call, got %d", n)
	}
}

func TestHandleReturn_RejectsEmptyReference(t *testing.T) {
	svc, _ := newTopupService(500, NewMockTopupBackend())

	if _, err := svc.HandleReturn(context.Background(), ""); !errors.Is(err, service.ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference, got %v", err)
	}
}

func TestHandleReturn_FailedVerificationIsTerminal(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyError = &backend.APIError{StatusCode: 400, Message: "Payment not successful"}
	svc, sessions := newTopupService(500, topups)

	_, err := svc.HandleReturn(context.Background(), "ref-1")
	if err == nil || err.Error() != "Payment not successful" {
		t.Fatalf("expected the backend message verbatim, got %v", err)
	}

	session, _ := sessions.Current()
	if session.WalletBalance != 500 {
		t.Errorf("failed verification must not touch the balance, got %v", session.WalletBalance)
	}

	// The return path never re-verifies a terminal reference.
	if _, err := svc.HandleReturn(context.Background(), "ref-1"); !errors.Is(err, service.ErrAlreadyAttempted) {
		t.Errorf("expected ErrAlreadyAttempted, got %v", err)
	}
	if n := atomic.LoadInt32(&topups.VerifyCallCount); n != 1 {
		t.Errorf("expected exactly one verify call, got %d", n)
	}
}

func TestRetryVerification_RetriesOnlyFailedReferences(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyError = &backend.APIError{StatusCode: 502, Message: "gateway unreachable"}
	svc, sessions := newTopupService(500, topups)

	if _, err := svc.HandleReturn(context.Background(), "ref-1"); err == nil {
		t.Fatal("expected first verification to fail")
	}

	// The explicit retry clears the failed mark and re-verifies.
	topups.VerifyError = nil
	topups.VerifyResult = verifyResult(2000, "Payment verified")

	result, err := svc.RetryVerification(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.NewBalance != 2000 {
		t.Errorf("expected balance 2000 after retry, got %v", result.NewBalance)
	}
	session, _ := sessions.Current()
	if session.WalletBalance != 2000 {
		t.Errorf("cached balance not updated on retried verification: %v", session.WalletBalance)
	}

	// A verified reference refuses further retries.
	if _, err := svc.RetryVerification(context.Background(), "ref-1"); !errors.Is(err, service.ErrAlreadyAttempted) {
		t.Errorf("expected ErrAlreadyAttempted after success, got %v", err)
	}
	if n := atomic.LoadInt32(&topups.VerifyCallCount); n != 2 {
		t.Errorf("expected two verify calls total, got %d", n)
	}
}

func TestRetryVerification_RefusesInFlightReference(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyResult = verifyResult(1500, "Payment verified")
	topups.Block = make(chan struct{})
	svc, _ := newTopupService(500, topups)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.HandleReturn(context.Background(), "ref-1")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&topups.VerifyCallCount) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("verification never reached the backend")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := svc.RetryVerification(context.Background(), "ref-1"); !errors.Is(err, service.ErrAttemptInFlight) {
		t.Errorf("expected ErrAttemptInFlight, got %v", err)
	}

	close(topups.Block)
	wg.Wait()
}

func TestHandleReturn_UsesConfiguredRedirectDelay(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyResult = verifyResult(1500, "Payment verified")

	sessions, _ := newHydratedSession(domain.RoleStudent, 500)
	svc := service.NewTopupService(topups, sessions, service.NewReferenceLedger(), nil, nil, 7*time.Second)

	result, err := svc.HandleReturn(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	if result.RedirectAfter != 7*time.Second {
		t.Errorf("expected redirect delay 7s, got %v", result.RedirectAfter)
	}
}

func TestTopupService_DefaultsRedirectDelay(t *testing.T) {
	topups := NewMockTopupBackend()
	topups.VerifyResult = verifyResult(1500, "Payment verified")
	svc, _ := newTopupService(500, topups)

	result, err := svc.HandleReturn(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	if result.RedirectAfter != service.DefaultRedirectDelay {
		t.Errorf("expected the default redirect delay, got %v", result.RedirectAfter)
	}
}
