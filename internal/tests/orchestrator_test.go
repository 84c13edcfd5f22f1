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
	"shuttlepay/internal/repository"
	"shuttlepay/internal/service"
)

func validCode(reference string, fare float64) *domain.PaymentCode {
	now := time.Now()
	return &domain.PaymentCode{
		Reference:  reference,
		IssuerID:   "driver-1",
		IssuerName: "Test Driver",
		Fare:       fare,
		RouteLabel: "North Gate - Library",
		IssuedAt:   now,
		ExpiresAt:  now.Add(5 * time.Minute),
	}
}

func payResult(txID string, balance float64) *backend.PayResult {
	result := &backend.PayResult{TransactionID: txID}
	result.Wallet.WalletBalance = balance
	return result
}

func newOrchestrator(balance float64, payments *MockPaymentBackend, journal *MockAttemptRepository) (*service.Orchestrator, *service.SessionService) {
	sessions, _ := newHydratedSession(domain.RoleStudent, balance)
	ledger := service.NewReferenceLedger()
	var attempts repository.AttemptRepository
	if journal != nil {
		attempts = journal
	}
	return service.NewOrchestrator(payments, sessions, ledger, nil, attempts, nil, nil), sessions
}

func TestPay_InsufficientBalanceBlocksWithoutBackendCall(t *testing.T) {
	payments := NewMockPaymentBackend()
	orchestrator, sessions := newOrchestrator(150, payments, nil)

	_, err := orchestrator.Pay(context.Background(), validCode("ref-1", 200))
	if !errors.Is(err, service.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}

	var gateErr *service.InsufficientBalanceError
	if !errors.As(err, &gateErr) {
		t.Fatal("expected InsufficientBalanceError")
	}
	if gateErr.Shortfall() != 50 {
		t.Errorf("expected shortfall 50, got %v", gateErr.Shortfall())
	}

	if n := atomic.LoadInt32(&payments.PayCallCount); n != 0 {
		t.Errorf("blocked payment must not reach the backend, got %d calls", n)
	}

	// Balance is untouched by a blocked attempt.
	session, _ := sessions.Current()
	if session.WalletBalance != 150 {
		t.Errorf("balance changed on blocked attempt: %v", session.WalletBalance)
	}
}

func TestPay_BlockedReferenceCanRetryAfterTopup(t *testing.T) {
	payments := NewMockPaymentBackend()
	payments.Result = payResult("tx-1", 100)
	orchestrator, sessions := newOrchestrator(150, payments, nil)

	code := validCode("ref-1", 200)

	if _, err := orchestrator.Pay(context.Background(), code); !errors.Is(err, service.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}

	// Simulate a verified top-up, then retry the same code.
	if err := sessions.ApplyVerifiedBalance(context.Background(), 300); err != nil {
		t.Fatalf("balance apply failed: %v", err)
	}

	result, err := orchestrator.Pay(context.Background(), code)
	if err != nil {
		t.Fatalf("retry after top-up failed: %v", err)
	}
	if result.NewBalance != 100 {
		t.Errorf("expected new balance 100, got %v", result.NewBalance)
	}
}

func TestPay_VerifiedPaymentAppliesBackendBalance(t *testing.T) {
	payments := NewMockPaymentBackend()
	// Locally computed would be 500 - 200 = 300; report a different value
	// to prove the backend's figure wins.
	payments.Result = payResult("tx-1", 275.5)
	orchestrator, sessions := newOrchestrator(500, payments, nil)

	result, err := orchestrator.Pay(context.Background(), validCode("ref-1", 200))
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if result.NewBalance != 275.5 {
		t.Errorf("expected backend-reported balance 275.5, got %v", result.NewBalance)
	}
	session, _ := sessions.Current()
	if session.WalletBalance != 275.5 {
		t.Errorf("cached balance must equal the backend-reported value, got %v", session.WalletBalance)
	}
	if result.Attempt.Status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED attempt, got %s", result.Attempt.Status)
	}
}

func TestPay_ExpiredCodeFailsLocally(t *testing.T) {
	payments := NewMockPaymentBackend()
	orchestrator, _ := newOrchestrator(500, payments, nil)

	code := validCode("ref-1", 200)
	code.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := orchestrator.Pay(context.Background(), code)
	if !errors.Is(err, service.ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}

	if n := atomic.LoadInt32(&payments.PayCallCount); n != 0 {
		t.Errorf("expired code must fail without a network call, got %d calls", n)
	}

	// Expiry is terminal for the reference.
	if _, err := orchestrator.Pay(context.Background(), code); !errors.Is(err, service.ErrReferenceFinalized) {
		t.Errorf("expected ErrReferenceFinalized on retry, got %v", err)
	}
}

func TestPay_DuplicateWhileInFlightIsSuppressed(t *testing.T) {
	payments := NewMockPaymentBackend()
	payments.Result = payResult("tx-1", 300)
	payments.Block = make(chan struct{})
	orchestrator, _ := newOrchestrator(500, payments, nil)

	code := validCode("ref-1", 200)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = orchestrator.Pay(context.Background(), code)
	}()

	// Wait for the first submission to reach the backend.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&payments.PayCallCount) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first submission never reached the backend")
		}
		time.Sleep(time.Millisecond)
	}

	// Duplicate press while the first is outstanding fails locally.
	if _, err := orchestrator.Pay(context.Background(), code); !errors.Is(err, service.ErrAttemptInFlight) {
		t.Errorf("expected ErrAttemptInFlight, got %v", err)
	}

	close(payments.Block)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first submission failed: %v", firstErr)
	}
	if n := atomic.LoadInt32(&payments.PayCallCount); n != 1 {
		t.Errorf("expected exactly one backend submission, got %d", n)
	}
}

func TestPay_FinalizedReferenceRefusesResubmission(t *testing.T) {
	payments := NewMockPaymentBackend()
	payments.Result = payResult("tx-1", 300)
	orchestrator, _ := newOrchestrator(500, payments, nil)

	code := validCode("ref-1", 200)
	if _, err := orchestrator.Pay(context.Background(), code); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	if _, err := orchestrator.Pay(context.Background(), code); !errors.Is(err, service.ErrReferenceFinalized) {
		t.Errorf("expected ErrReferenceFinalized, got %v", err)
	}
	if n := atomic.LoadInt32(&payments.PayCallCount); n != 1 {
		t.Errorf("finalized reference must not resubmit, got %d calls", n)
	}
}

func TestPay_IndependentReferencesDoNotBlockEachOther(t *testing.T) {
	payments := NewMockPaymentBackend()
	payments.Result = payResult("tx-1", 300)
	orchestrator, _ := newOrchestrator(1000, payments, nil)

	if _, err := orchestrator.Pay(context.Background(), validCode("ref-1", 200)); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}
	if _, err := orchestrator.Pay(context.Background(), validCode("ref-2", 200)); err != nil {
		t.Fatalf("second payment with a fresh reference failed: %v", err)
	}
}

func TestPay_BackendRejectionIsTerminalWithVerbatimMessage(t *testing.T) {
	payments := NewMockPaymentBackend()
	payments.Error = &backend.APIError{StatusCode: 400, Message: "QR code has expired"}
	orchestrator, sessions := newOrchestrator(500, payments, nil)

	code := validCode("ref-1", 200)
	_, err := orchestrator.Pay(context.Background(), code)
	if err == nil || err.Error() != "QR code has expired" {
		t.Fatalf("expected the backend message verbatim, got %v", err)
	}

	// A rejected attempt never touches the balance.
	session, _ := sessions.Current()
	if session.WalletBalance != 500 {
		t.Errorf("balance changed on failed attempt: %v", session.WalletBalance)
	}

	// The rejection is terminal for the reference.
	if _, err := orchestrator.Pay(context.Background(), code); !errors.Is(err, service.ErrReferenceFinalized) {
		t.Errorf("expected ErrReferenceFinalized on retry, got %v", err)
	}
}

func TestPay_JournalRecordsTerminalState(t *testing.T) {
	payments := NewMockPaymentBackend()
	payments.Result = payResult("tx-1", 300)
	journal := NewMockAttemptRepository()
	orchestrator, _ := newOrchestrator(500, payments, journal)

	if _, err := orchestrator.Pay(context.Background(), validCode("ref-1", 200)); err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	attempt, err := journal.GetByReference(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("expected a journaled attempt: %v", err)
	}
	if attempt.Status != domain.AttemptStatusVerified {
		t.Errorf("expected VERIFIED in the journal, got %s", attempt.Status)
	}
	if attempt.Kind != domain.AttemptKindProximity {
		t.Errorf("expected a proximity attempt, got %s", attempt.Kind)
	}
	if attempt.FinishedAt.IsZero() {
		t.Error("terminal attempt must carry a finish time")
	}
}

func TestPay_RequiresStudentRole(t *testing.T) {
	payments := NewMockPaymentBackend()
	sessions, _ := newHydratedSession(domain.RoleDriver, 500)
	orchestrator := service.NewOrchestrator(payments, sessions, service.NewReferenceLedger(), nil, nil, nil, nil)

	_, err := orchestrator.Pay(context.Background(), validCode("ref-1", 200))
	if !errors.Is(err, service.ErrRoleNotAllowed) {
		t.Errorf("expected ErrRoleNotAllowed, got %v", err)
	}
}
