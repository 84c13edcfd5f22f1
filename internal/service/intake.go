package service

import (
	"errors"
	"sync"

	"shuttlepay/internal/domain"
)

// IntakeState represents the current state of the scan intake machine.
type IntakeState string

const (
	IntakeIdle      IntakeState = "IDLE"
	IntakeCapturing IntakeState = "CAPTURING"
	IntakeDecoded   IntakeState = "DECODED"
	IntakeValid     IntakeState = "VALID"
	IntakeInvalid   IntakeState = "INVALID"
)

// CaptureSession is a handle on the scanning hardware. The intake closes it
// deterministically once a code is accepted or the user rescans, so a
// capture session never dangles.
type CaptureSession interface {
	Close() error
}

// IntakeService acquires a payment code from the camera or a textual paste
// and validates its shape before anything reaches the orchestrator.
type IntakeService struct {
	mu      sync.Mutex
	state   IntakeState
	capture CaptureSession
	code    *domain.PaymentCode
}

// NewIntakeService creates an intake machine in the Idle state.
func NewIntakeService() *IntakeService {
	return &IntakeService{state: IntakeIdle}
}

// State returns the machine's current state.
func (s *IntakeService) State() IntakeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginCapture starts a camera capture session.
func (s *IntakeService) BeginCapture(capture CaptureSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == IntakeCapturing {
		return ErrCaptureInProgress
	}

	s.capture = capture
	s.code = nil
	s.state = IntakeCapturing
	return nil
}

// HandleFrame feeds one decode result from the scanning library. Decode
// failures keep the machine capturing and are not surfaced: per-frame noise
// is expected and only the first successful decode matters. A decoded payload
// that fails to parse moves through Invalid with a user-facing error and the
// machine returns to capturing; it is never silently retried.
func (s *IntakeService) HandleFrame(payload string, decodeErr error) (*domain.PaymentCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != IntakeCapturing {
		return nil, ErrNotCapturing
	}

	if decodeErr != nil || payload == "" {
		return nil, nil // Continuous scanning: swallow frame noise
	}

	s.state = IntakeDecoded
	return s.acceptPayloadLocked(payload, IntakeCapturing)
}

// Paste enters the machine with a textual token instead of a camera frame.
func (s *IntakeService) Paste(raw string) (*domain.PaymentCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == IntakeCapturing {
		return nil, ErrCaptureInProgress
	}

	s.state = IntakeDecoded
	return s.acceptPayloadLocked(raw, IntakeIdle)
}

// Code returns the accepted payment code once the machine is Valid.
func (s *IntakeService) Code() (*domain.PaymentCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != IntakeValid || s.code == nil {
		return nil, false
	}
	return s.code, true
}

// Rescan tears down any residual capture state, discards a previously
// decoded code, and returns to Idle. Idempotent.
func (s *IntakeService) Rescan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.releaseCaptureLocked()
	s.code = nil
	s.state = IntakeIdle
	return err
}

// acceptPayloadLocked parses a decoded payload. On success the capture is
// released and the machine holds the code; on failure it falls back to the
// given state. Caller holds s.mu.
func (s *IntakeService) acceptPayloadLocked(payload string, fallback IntakeState) (*domain.PaymentCode, error) {
	code, err := domain.DecodeToken(payload)
	if err != nil {
		// Invalid is transient: the error is surfaced and the machine
		// immediately returns so the user can try again.
		s.state = fallback
		if !errors.Is(err, domain.ErrMalformedToken) {
			err = domain.ErrMalformedToken
		}
		return nil, err
	}

	// Hardware release failure must not invalidate a good code.
	_ = s.releaseCaptureLocked()

	s.code = code
	s.state = IntakeValid
	return code, nil
}

// releaseCaptureLocked closes the capture session if one is open.
func (s *IntakeService) releaseCaptureLocked() error {
	if s.capture == nil {
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	return err
}
