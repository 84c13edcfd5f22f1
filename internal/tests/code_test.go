package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"shuttlepay/internal/domain"
	"shuttlepay/internal/service"
)

func TestGenerateCode_EncodesBackendCode(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	generator := NewMockGeneratorBackend()
	generator.Code = &domain.PaymentCode{
		Reference:  "ref-1",
		IssuerID:   "driver-1",
		IssuerName: "Test Driver",
		Fare:       250,
		RouteLabel: "Hostel Loop",
		IssuedAt:   now,
		ExpiresAt:  now.Add(5 * time.Minute),
	}

	sessions, _ := newHydratedSession(domain.RoleDriver, 0)
	codes := service.NewCodeService(generator, sessions)

	generated, err := codes.GenerateCode(context.Background(), service.GenerateCodeRequest{Fare: 250, Route: "Hostel Loop"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if generated.Token == "" {
		t.Fatal("expected a scannable token")
	}

	// The token must round-trip back into the same code.
	decoded, err := domain.DecodeToken(generated.Token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Reference != "ref-1" || decoded.Fare != 250 {
		t.Errorf("round trip altered the code: %+v", decoded)
	}
	if !decoded.ExpiresAt.Equal(generated.Code.ExpiresAt) {
		t.Errorf("round trip altered the expiry: %v vs %v", decoded.ExpiresAt, generated.Code.ExpiresAt)
	}
}

func TestGenerateCode_RequiresDriverRole(t *testing.T) {
	sessions, _ := newHydratedSession(domain.RoleStudent, 500)
	codes := service.NewCodeService(NewMockGeneratorBackend(), sessions)

	_, err := codes.GenerateCode(context.Background(), service.GenerateCodeRequest{Fare: 250})
	if !errors.Is(err, service.ErrRoleNotAllowed) {
		t.Errorf("expected ErrRoleNotAllowed, got %v", err)
	}
}

func TestGenerateCode_RejectsNonPositiveFare(t *testing.T) {
	generator := NewMockGeneratorBackend()
	sessions, _ := newHydratedSession(domain.RoleDriver, 0)
	codes := service.NewCodeService(generator, sessions)

	for _, fare := range []float64{0, -10} {
		if _, err := codes.GenerateCode(context.Background(), service.GenerateCodeRequest{Fare: fare}); !errors.Is(err, service.ErrInvalidFare) {
			t.Errorf("expected ErrInvalidFare for fare %v, got %v", fare, err)
		}
	}
	if n := atomic.LoadInt32(&generator.GenerateCallCount); n != 0 {
		t.Errorf("invalid fares must not reach the backend, got %d calls", n)
	}
}

func TestDecodeToken_RejectsIncompleteShapes(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name string
		code domain.PaymentCode
	}{
		{"missing reference", domain.PaymentCode{IssuerID: "d", Fare: 100, ExpiresAt: now}},
		{"missing issuer", domain.PaymentCode{Reference: "r", Fare: 100, ExpiresAt: now}},
		{"zero fare", domain.PaymentCode{Reference: "r", IssuerID: "d", ExpiresAt: now}},
		{"missing expiry", domain.PaymentCode{Reference: "r", IssuerID: "d", Fare: 100}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := domain.EncodeToken(&tc.code)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if _, err := domain.DecodeToken(token); !errors.Is(err, domain.ErrMalformedToken) {
				t.Errorf("expected ErrMalformedToken, got %v", err)
			}
		})
	}
}

func TestPaymentCode_ExpiryWindow(t *testing.T) {
	now := time.Now()
	code := &domain.PaymentCode{ExpiresAt: now.Add(time.Minute)}

	if code.Expired(now) {
		t.Error("code must be valid inside its window")
	}
	if code.Expired(code.ExpiresAt) {
		t.Error("code must still be valid at the exact expiry instant")
	}
	if !code.Expired(now.Add(2 * time.Minute)) {
		t.Error("code must be expired past its window")
	}
}
