package tests

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"shuttlepay/internal/domain"
	"shuttlepay/internal/service"
)

func encodedToken(t *testing.T, reference string) string {
	t.Helper()
	now := time.Now()
	token, err := domain.EncodeToken(&domain.PaymentCode{
		Reference: reference,
		IssuerID:  "driver-1",
		Fare:      200,
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return token
}

func TestHandleFrame_SwallowsDecodeNoise(t *testing.T) {
	intake := service.NewIntakeService()
	capture := NewMockCaptureSession()

	if err := intake.BeginCapture(capture); err != nil {
		t.Fatalf("begin capture failed: %v", err)
	}

	// Per-frame decode failures and empty frames keep the machine capturing
	// without surfacing anything.
	if code, err := intake.HandleFrame("", errors.New("no code in frame")); code != nil || err != nil {
		t.Errorf("decode noise must be swallowed, got code=%v err=%v", code, err)
	}
	if code, err := intake.HandleFrame("", nil); code != nil || err != nil {
		t.Errorf("empty frame must be swallowed, got code=%v err=%v", code, err)
	}
	if state := intake.State(); state != service.IntakeCapturing {
		t.Errorf("expected machine still capturing, got %s", state)
	}
	if n := atomic.LoadInt32(&capture.CloseCallCount); n != 0 {
		t.Errorf("capture must stay open through noisy frames, got %d closes", n)
	}
}

func TestHandleFrame_FirstGoodDecodeClosesCapture(t *testing.T) {
	intake := service.NewIntakeService()
	capture := NewMockCaptureSession()
	token := encodedToken(t, "ref-1")

	if err := intake.BeginCapture(capture); err != nil {
		t.Fatalf("begin capture failed: %v", err)
	}

	code, err := intake.HandleFrame(token, nil)
	if err != nil {
		t.Fatalf("frame handling failed: %v", err)
	}
	if code == nil || code.Reference != "ref-1" {
		t.Fatalf("expected decoded code ref-1, got %+v", code)
	}

	if state := intake.State(); state != service.IntakeValid {
		t.Errorf("expected Valid state, got %s", state)
	}
	if n := atomic.LoadInt32(&capture.CloseCallCount); n != 1 {
		t.Errorf("accepted code must close the capture exactly once, got %d", n)
	}

	held, ok := intake.Code()
	if !ok || held.Reference != "ref-1" {
		t.Errorf("expected the machine to hold the accepted code, got %+v ok=%v", held, ok)
	}
}

func TestHandleFrame_GarbagePayloadReturnsToCapturing(t *testing.T) {
	intake := service.NewIntakeService()
	capture := NewMockCaptureSession()

	if err := intake.BeginCapture(capture); err != nil {
		t.Fatalf("begin capture failed: %v", err)
	}

	// A frame that decodes as text but is not a payment token surfaces an
	// error instead of being silently retried.
	_, err := intake.HandleFrame("not-a-token", nil)
	if !errors.Is(err, domain.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}

	if state := intake.State(); state != service.IntakeCapturing {
		t.Errorf("expected machine back to capturing, got %s", state)
	}
	if n := atomic.LoadInt32(&capture.CloseCallCount); n != 0 {
		t.Errorf("rejected payload must not close the capture, got %d closes", n)
	}
}

func TestHandleFrame_RefusesOutsideCapture(t *testing.T) {
	intake := service.NewIntakeService()

	_, err := intake.HandleFrame("anything", nil)
	if !errors.Is(err, service.ErrNotCapturing) {
		t.Errorf("expected ErrNotCapturing, got %v", err)
	}
}

func TestBeginCapture_RefusesConcurrentCapture(t *testing.T) {
	intake := service.NewIntakeService()

	if err := intake.BeginCapture(NewMockCaptureSession()); err != nil {
		t.Fatalf("begin capture failed: %v", err)
	}
	if err := intake.BeginCapture(NewMockCaptureSession()); !errors.Is(err, service.ErrCaptureInProgress) {
		t.Errorf("expected ErrCaptureInProgress, got %v", err)
	}
}

func TestPaste_AcceptsValidToken(t *testing.T) {
	intake := service.NewIntakeService()
	token := encodedToken(t, "ref-1")

	code, err := intake.Paste(token)
	if err != nil {
		t.Fatalf("paste failed: %v", err)
	}
	if code.Reference != "ref-1" {
		t.Errorf("expected ref-1, got %s", code.Reference)
	}
	if state := intake.State(); state != service.IntakeValid {
		t.Errorf("expected Valid state, got %s", state)
	}
}

func TestPaste_RejectsMalformedToken(t *testing.T) {
	intake := service.NewIntakeService()

	_, err := intake.Paste("%%% not base64 %%%")
	if !errors.Is(err, domain.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if state := intake.State(); state != service.IntakeIdle {
		t.Errorf("expected machine back to idle, got %s", state)
	}
}

func TestRescan_DiscardsCodeAndClosesCapture(t *testing.T) {
	intake := service.NewIntakeService()
	capture := NewMockCaptureSession()

	if err := intake.BeginCapture(capture); err != nil {
		t.Fatalf("begin capture failed: %v", err)
	}
	if err := intake.Rescan(); err != nil {
		t.Fatalf("rescan failed: %v", err)
	}

	if state := intake.State(); state != service.IntakeIdle {
		t.Errorf("expected Idle after rescan, got %s", state)
	}
	if n := atomic.LoadInt32(&capture.CloseCallCount); n != 1 {
		t.Errorf("rescan must close the open capture, got %d closes", n)
	}
	if _, ok := intake.Code(); ok {
		t.Error("rescan must discard any held code")
	}

	// Rescan from Idle is a no-op.
	if err := intake.Rescan(); err != nil {
		t.Errorf("repeated rescan must be idempotent, got %v", err)
	}
}
