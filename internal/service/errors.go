package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation requires a logged-in session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRoleNotAllowed is returned when the session's role cannot perform the operation.
	ErrRoleNotAllowed = errors.New("operation not allowed for this role")

	// ErrInvalidRole is returned when a login/register request names an unknown role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidFare is returned when a code is requested with a non-positive fare.
	ErrInvalidFare = errors.New("fare must be positive")

	// ErrInvalidTopupAmount is returned when a top-up amount is outside the allowed range.
	ErrInvalidTopupAmount = errors.New("top-up amount out of range")

	// ErrInvalidReference is returned when a reference is empty or unknown.
	ErrInvalidReference = errors.New("invalid payment reference")

	// ErrCodeExpired is returned when a payment code is past its validity window.
	ErrCodeExpired = errors.New("payment code expired")

	// ErrAttemptInFlight is returned when a submission for the reference is already outstanding.
	ErrAttemptInFlight = errors.New("payment attempt already in flight for this reference")

	// ErrReferenceFinalized is returned when the reference already reached a terminal state.
	ErrReferenceFinalized = errors.New("payment reference already finalized")

	// ErrAlreadyAttempted is returned when verification for the reference was already attempted.
	ErrAlreadyAttempted = errors.New("verification already attempted for this reference")

	// ErrNotCapturing is returned when a scan frame arrives outside a capture session.
	ErrNotCapturing = errors.New("no capture in progress")

	// ErrCaptureInProgress is returned when a capture is started twice without a rescan.
	ErrCaptureInProgress = errors.New("capture already in progress")
)

// ErrInsufficientBalance is the sentinel for balance-gate failures.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// InsufficientBalanceError reports a failed balance gate with the computed
// shortfall. It matches ErrInsufficientBalance under errors.Is.
type InsufficientBalanceError struct {
	Required  float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: need %.2f more", e.Shortfall())
}

// Shortfall is the amount the user must top up before paying.
func (e *InsufficientBalanceError) Shortfall() float64 {
	return e.Required - e.Available
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
